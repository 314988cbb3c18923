package calendar

import "time"

// DemoEvents returns the fixed placeholder events, positioned relative to now:
// a fire-station shift tomorrow and a medical check-up the day after.
func DemoEvents(now time.Time) []Event {
	at := func(d time.Duration) EventTime {
		return EventTime{DateTime: now.Add(d).UTC().Format(time.RFC3339)}
	}
	return []Event{
		{
			ID:          "1",
			Summary:     "Plantão ASE-450",
			Description: "Plantão de bombeiro",
			Start:       at(24 * time.Hour),
			End:         at(25 * time.Hour),
			Location:    "ASE-450",
			ColorID:     "11",
		},
		{
			ID:          "2",
			Summary:     "Consulta Médica",
			Description: "Check-up rotina",
			Start:       at(48 * time.Hour),
			End:         at(49 * time.Hour),
			Location:    "Clínica Saúde",
			ColorID:     "6",
		},
	}
}
