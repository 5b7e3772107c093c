package mysql

const insertTourSQL = `
INSERT INTO tours
  (booking_id, external_id, confirmation_code, title, tour_date, tour_time,
   duration_min, language, participants, customer_name, customer_email,
   customer_phone, booking_channel, amount, cancelled, needs_assignment,
   guide_payment_status, rescheduled, original_date, original_time,
   rescheduled_at, last_synced_at, raw)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// updateTourSQL touches sync-owned columns only. guide_id, notes,
// needs_assignment and guide_payment_status belong to the operator and are
// deliberately absent.
const updateTourSQL = `
UPDATE tours SET
  booking_id        = ?,
  external_id       = ?,
  confirmation_code = ?,
  title             = ?,
  tour_date         = ?,
  tour_time         = ?,
  duration_min      = ?,
  language          = ?,
  participants      = ?,
  customer_name     = ?,
  customer_email    = ?,
  customer_phone    = ?,
  booking_channel   = ?,
  amount            = ?,
  cancelled         = ?,
  rescheduled       = ?,
  original_date     = ?,
  original_time     = ?,
  rescheduled_at    = ?,
  last_synced_at    = ?,
  raw               = ?,
  updated_at        = CURRENT_TIMESTAMP
WHERE id = ?
`

const selectTourColumns = `
  id, booking_id, external_id, confirmation_code, title, tour_date, tour_time,
  duration_min, language, participants, customer_name, customer_email,
  customer_phone, booking_channel, amount, cancelled, needs_assignment,
  guide_payment_status, rescheduled, original_date, original_time,
  rescheduled_at, guide_id, notes, last_synced_at, raw
`

// NULL never equals anything, so a missing key simply cannot match.
const findByExternalKeySQL = `
SELECT` + selectTourColumns + `
FROM tours
WHERE booking_id = ? OR external_id = ?
LIMIT 1
`

const listUnassignedSQL = `
SELECT` + selectTourColumns + `
FROM tours
WHERE needs_assignment = 1 AND cancelled = 0 AND tour_date >= ?
ORDER BY tour_date, tour_time, id
`

const insertSkipSQL = `
INSERT INTO sync_skips (booking_ref, reason)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE reason = VALUES(reason), seen_at = CURRENT_TIMESTAMP
`

const upsertSyncMarkerSQL = `
INSERT INTO sync_state (id, last_synced_at)
VALUES (1, ?)
ON DUPLICATE KEY UPDATE last_synced_at = VALUES(last_synced_at)
`

const selectSyncMarkerSQL = `SELECT last_synced_at FROM sync_state WHERE id = 1`
