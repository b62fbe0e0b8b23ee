//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseBillingEventID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParseBillingEventID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE billing_events;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseBillingEventID(input)
		if err != nil {
			return
		}
		// A valid ID must round-trip through its string form unchanged.
		roundTrip, err2 := ParseBillingEventID(id.String())
		if err2 != nil {
			t.Errorf("valid ID failed round-trip: %v", err2)
		}
		if roundTrip != id {
			t.Error("round-trip changed ID value")
		}
	})
}

// FuzzParseAllIDs ensures the UUID-backed ID types validate consistently.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errBilling := ParseBillingEventID(input)
		_, errHistory := ParseHistoryEntryID(input)
		_, errPoll := ParsePollMessageID(input)

		if errBilling == nil {
			if errHistory != nil || errPoll != nil {
				t.Error("inconsistent parsing across ID types")
			}
		}
		if errBilling != nil {
			if errHistory == nil || errPoll == nil {
				t.Error("inconsistent rejection across ID types")
			}
		}
	})
}
