package app

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/domain"
)

/********** alias registries (single source of truth) **********/

var bookingAliases = map[string][]string{
	"booking_id":   {"bookingId", "parentBookingId", "booking.id", "parentBooking.id"},
	"external_id":  {"id", "productBookingId", "externalBookingReference"},
	"confirmation": {"confirmationCode", "productConfirmationCode", "parentBooking.confirmationCode"},
	"title":        {"fields.title", "product.title", "activity.title", "productTitle", "title"},
	"channel":      {"bookingChannel.title", "fields.bookingChannel.title", "channel.title", "salesSegment"},
	"amount":       {"totalPrice", "fields.totalPrice", "amount", "customerInvoice.totalAsMoney.amount"},
	"status":       {"status", "booking.status", "parentBooking.status"},
	"language":     {"language", "fields.language", "customer.language", "customer.locale"},
	"rate_id":      {"rateId", "fields.rateId", "rate.id"},
	"activity_id":  {"productId", "activity.id", "product.id", "fields.activityId"},
	"cust_name":    {"customer.name", "customer.fullName"},
	"cust_first":   {"customer.firstName", "customer.first_name"},
	"cust_last":    {"customer.lastName", "customer.last_name"},
	"cust_email":   {"customer.email", "customer.emailAddress"},
	"cust_phone":   {"customer.phoneNumber", "customer.phone", "customer.mobile"},
}

// Start-time extraction order matters: the explicit product start timestamp
// is the strongest signal, the booking creation time the weakest (it is the
// moment the customer booked, not the tour start, and is only used when
// nothing else is present).
var startTimeAliases = [][]string{
	{"startDateTime", "fields.startDateTime"},
	{"startTime", "fields.startTime"},
	// startDate + formatted time string handled separately in startOf
	{"parentBooking.startDateTime", "booking.startDate"},
	{"creationDate", "created", "booking.creationDate"},
}

var (
	reGuideNote    = regexp.MustCompile(`(?i)GUIDE\s*:\s*([\p{L}]+)`)
	reBookingLangs = regexp.MustCompile(`(?i)Booking languages:\s*([A-Za-z]+)`)
)

// languageKeywords maps rate/title tokens to the canonical language name.
var languageKeywords = map[string]string{
	"italian":    "Italian",
	"italiano":   "Italian",
	"english":    "English",
	"inglese":    "English",
	"french":     "French",
	"francese":   "French",
	"français":   "French",
	"spanish":    "Spanish",
	"spagnolo":   "Spanish",
	"español":    "Spanish",
	"german":     "German",
	"tedesco":    "German",
	"deutsch":    "German",
	"portuguese": "Portuguese",
	"russian":    "Russian",
}

// Transformer maps one opaque upstream booking into a canonical tour record.
// Missing optional fields fall back to defaults or nil; only a booking with
// no extractable identity is an error.
type Transformer struct {
	catalog  domain.ProductCatalog
	cache    domain.Cache
	cacheTTL int // seconds
}

func NewTransformer(catalog domain.ProductCatalog, cache domain.Cache, cacheTTLSec int) *Transformer {
	return &Transformer{catalog: catalog, cache: cache, cacheTTL: cacheTTLSec}
}

func (t *Transformer) Transform(ctx context.Context, b map[string]any) (domain.TourRecord, error) {
	bookingID := firstStringyAlias(b, "booking_id")
	externalID := firstStringyAlias(b, "external_id")
	if bookingID == nil && externalID == nil {
		return domain.TourRecord{}, fmt.Errorf("booking has no upstream id")
	}

	raw, err := json.Marshal(b)
	if err != nil {
		log.Error().Err(err).Str("context", "transform").Msg("failed to marshal booking payload")
	}

	rec := domain.TourRecord{
		BookingID:        bookingID,
		ExternalID:       externalID,
		ConfirmationCode: firstNonEmptyAlias(b, bookingAliases, "confirmation"),
		Title:            deref(firstNonEmptyAlias(b, bookingAliases, "title")),
		DurationMin:      durationOf(b),
		Participants:     participantsOf(b),
		CustomerName:     customerNameOf(b),
		CustomerEmail:    firstNonEmptyAlias(b, bookingAliases, "cust_email"),
		CustomerPhone:    firstNonEmptyAlias(b, bookingAliases, "cust_phone"),
		BookingChannel:   firstNonEmptyAlias(b, bookingAliases, "channel"),
		Amount:           getFloatFlexible(b, bookingAliases["amount"]...),
		Cancelled:        cancelledOf(b),
		// Guide payment tracking is ours alone; the upstream customer
		// payment status never feeds it.
		GuidePaymentStatus: domain.GuidePaymentPending,
		RawJSON:            raw,
	}

	if start := t.startOf(b); start != nil {
		rec.Date = start.Format("2006-01-02")
		rec.Time = start.Format("15:04")
	}
	rec.Language = t.languageOf(ctx, b, rec.Title)
	return rec, nil
}

/********** start date/time **********/

func (t *Transformer) startOf(b map[string]any) *time.Time {
	for i, paths := range startTimeAliases {
		if ts := firstTimeFlexible(b, paths...); ts != nil {
			return ts
		}
		// After the two strong timestamp chains, try the split
		// date + formatted-time-string shape before anything weaker.
		if i == 1 {
			if ts := splitStartOf(b); ts != nil {
				return ts
			}
		}
	}
	return nil
}

// splitStartOf combines a date-only field with a separate "HH:MM" string.
func splitStartOf(b map[string]any) *time.Time {
	day := firstTimeFlexible(b, "startDate", "fields.startDate")
	if day == nil {
		return nil
	}
	hhmm := deref(firstNonEmptyAlias(b, map[string][]string{
		"t": {"fields.startTimeStr", "startTimeStr", "fields.startTime"},
	}, "t"))
	if hhmm == "" {
		return day
	}
	if clock, err := time.Parse("15:04", strings.TrimSpace(hhmm)); err == nil {
		combined := time.Date(day.Year(), day.Month(), day.Day(),
			clock.Hour(), clock.Minute(), 0, 0, time.UTC)
		return &combined
	}
	return day
}

/********** participants **********/

func participantsOf(b map[string]any) int {
	if n := firstInt64Flexible(b, "totalParticipants", "fields.totalParticipants"); n != nil && *n > 0 {
		return int(*n)
	}
	if n := priceCategorySum(b); n > 0 {
		return n
	}
	if n := firstInt64Flexible(b, "participants", "fields.participants", "totalPax"); n != nil && *n > 0 {
		return int(*n)
	}
	return 1
}

// priceCategorySum adds the quantities of all price categories except the
// free infant category, which does not count toward guide headcount.
func priceCategorySum(b map[string]any) int {
	for _, path := range []string{"fields.priceCategoryBookings", "priceCategoryBookings"} {
		raw, ok := lookupAny(b, path).([]any)
		if !ok {
			continue
		}
		total := 0
		for _, it := range raw {
			row, ok := it.(map[string]any)
			if !ok {
				continue
			}
			title := strings.ToUpper(deref(firstNonEmptyAlias(row, map[string][]string{
				"cat": {"pricingCategory.title", "pricingCategoryTitle", "pricingCategory.ticketCategory", "category"},
			}, "cat")))
			if strings.Contains(title, "INFANT") {
				continue
			}
			if q := firstInt64Flexible(row, "quantity", "qty", "count"); q != nil {
				total += int(*q)
			}
		}
		if total > 0 {
			return total
		}
	}
	return 0
}

/********** language **********/

// languageOf walks the precedence chain: operator note, upstream note,
// rate-title keyword (one extra catalog call, cached), structured field,
// title keyword. A language is never guessed beyond that; nil means unknown.
func (t *Transformer) languageOf(ctx context.Context, b map[string]any, title string) *string {
	notes := noteBodies(b)

	for _, n := range notes {
		if m := reGuideNote.FindStringSubmatch(n); m != nil {
			return ptrStr(canonicalLanguage(m[1]))
		}
	}
	for _, n := range notes {
		if m := reBookingLangs.FindStringSubmatch(n); m != nil {
			return ptrStr(canonicalLanguage(m[1]))
		}
	}
	if lang := t.rateTitleLanguage(ctx, b); lang != nil {
		return lang
	}
	if s := firstNonEmptyAlias(b, bookingAliases, "language"); s != nil {
		return ptrStr(canonicalLanguage(*s))
	}
	if lang := keywordLanguage(title); lang != "" {
		return ptrStr(lang)
	}
	return nil
}

func (t *Transformer) rateTitleLanguage(ctx context.Context, b map[string]any) *string {
	if t.catalog == nil {
		return nil
	}
	rateID := firstStringyAlias(b, "rate_id")
	activityID := firstStringyAlias(b, "activity_id")
	if rateID == nil || activityID == nil {
		return nil
	}

	key := fmt.Sprintf("rate:%s:%s", *activityID, *rateID)
	var title string
	if t.cache != nil {
		if ok, _ := t.cache.Get(ctx, key, &title); !ok {
			fetched, err := t.catalog.RateTitle(ctx, *activityID, *rateID)
			if err != nil {
				log.Debug().Err(err).Str("activity", *activityID).Str("rate", *rateID).
					Msg("rate title lookup failed")
				return nil
			}
			title = fetched
			_ = t.cache.Set(ctx, key, title, t.cacheTTL)
		}
	} else {
		fetched, err := t.catalog.RateTitle(ctx, *activityID, *rateID)
		if err != nil {
			return nil
		}
		title = fetched
	}

	if lang := keywordLanguage(title); lang != "" {
		return ptrStr(lang)
	}
	return nil
}

func noteBodies(b map[string]any) []string {
	var out []string
	for _, path := range []string{"notes", "booking.notes", "parentBooking.notes"} {
		raw, ok := lookupAny(b, path).([]any)
		if !ok {
			continue
		}
		for _, it := range raw {
			switch n := it.(type) {
			case string:
				out = append(out, n)
			case map[string]any:
				if body, ok := n["body"].(string); ok && body != "" {
					out = append(out, body)
				}
			}
		}
	}
	for _, path := range []string{"comments", "customerComments", "fields.comments"} {
		if s := lookupStr(b, path); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func canonicalLanguage(word string) string {
	if lang, ok := languageKeywords[strings.ToLower(strings.TrimSpace(word))]; ok {
		return lang
	}
	w := strings.TrimSpace(word)
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

func keywordLanguage(s string) string {
	low := strings.ToLower(s)
	for kw, lang := range languageKeywords {
		if strings.Contains(low, kw) {
			return lang
		}
	}
	return ""
}

/********** duration / customer / status **********/

func durationOf(b map[string]any) *int {
	if n := firstInt64Flexible(b, "fields.durationMinutes", "activity.durationMinutes", "durationMinutes"); n != nil && *n > 0 {
		v := int(*n)
		return &v
	}
	// {hours, minutes} object shape
	for _, path := range []string{"duration", "activity.duration"} {
		obj, ok := lookupAny(b, path).(map[string]any)
		if !ok {
			continue
		}
		hours := firstInt64Flexible(obj, "hours")
		mins := firstInt64Flexible(obj, "minutes")
		total := 0
		if hours != nil {
			total += int(*hours) * 60
		}
		if mins != nil {
			total += int(*mins)
		}
		if total > 0 {
			return &total
		}
	}
	return nil
}

func customerNameOf(b map[string]any) *string {
	if s := firstNonEmptyAlias(b, bookingAliases, "cust_name"); s != nil {
		return s
	}
	first := firstNonEmptyAlias(b, bookingAliases, "cust_first")
	last := firstNonEmptyAlias(b, bookingAliases, "cust_last")
	if full := strings.TrimSpace(joinNonEmpty(deref(first), deref(last))); full != "" {
		return &full
	}
	return nil
}

func cancelledOf(b map[string]any) bool {
	for _, path := range bookingAliases["status"] {
		if s := lookupStr(b, path); s != "" {
			return strings.EqualFold(s, "CANCELLED")
		}
	}
	return false
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

// firstStringyAlias: like firstNonEmptyAlias but also accepts numeric ids.
func firstStringyAlias(m map[string]any, key string) *string {
	for _, p := range bookingAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case string:
			if v != "" {
				s := v
				return &s
			}
		case float64:
			s := strconv.FormatInt(int64(v), 10)
			return &s
		case json.Number:
			s := v.String()
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

// firstTimeFlexible: timestamp from several paths; accepts epoch millis,
// RFC3339, and the upstream "2006-01-02 15:04" / date-only shapes.
func firstTimeFlexible(m map[string]any, paths ...string) *time.Time {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			if v <= 0 {
				continue
			}
			t := time.UnixMilli(int64(v)).UTC()
			return &t
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			for _, layout := range []string{
				time.RFC3339,
				"2006-01-02T15:04:05",
				"2006-01-02 15:04:05",
				"2006-01-02 15:04",
				"2006-01-02",
			} {
				if t, err := time.Parse(layout, s); err == nil {
					t = t.UTC()
					return &t
				}
			}
		}
	}
	return nil
}
