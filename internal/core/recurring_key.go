package core

import "strings"

// RecurringKey identifies an obligation within a month: "{sourceType}:{sourceId}".
type RecurringKey struct {
	SourceType SourceType
	SourceID   string
}

func (k RecurringKey) String() string {
	return string(k.SourceType) + ":" + k.SourceID
}

// ParseRecurringKey is the inverse of RecurringKey.String.
func ParseRecurringKey(s string) (RecurringKey, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return RecurringKey{}, invalid("recurring_key", s, "must be sourceType:sourceId")
	}
	st := SourceType(typ)
	if !st.Valid() {
		return RecurringKey{}, invalid("recurring_key", s, "unknown source type")
	}
	return RecurringKey{SourceType: st, SourceID: id}, nil
}
