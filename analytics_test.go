package main

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"testing"
	"time"
)

func TestUserRegistrationTrends(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	analytics := NewAnalytics(db)
	ctx := context.Background()

	// Two signups in Nov 2024, one in Jan 2025, one in Mar 2024 — inserted
	// out of order to prove the ordering comes from the query.
	stamps := []time.Time{
		time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 11, 28, 23, 0, 0, 0, time.UTC),
	}
	for i, ts := range stamps {
		u := User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: "x",
			CreatedAt:    ts,
		}
		if err := store.CreateUser(ctx, &u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	s, err := analytics.UserRegistrationTrends(ctx)
	if err != nil {
		t.Fatalf("UserRegistrationTrends: %v", err)
	}

	wantLabels := []string{"2024-03", "2024-11", "2025-01"}
	wantValues := []int64{1, 2, 1}
	if len(s.Labels) != len(wantLabels) {
		t.Fatalf("labels = %v, want %v", s.Labels, wantLabels)
	}
	monthFormat := regexp.MustCompile(`^\d{4}-\d{2}$`)
	for i := range wantLabels {
		if !monthFormat.MatchString(s.Labels[i]) {
			t.Errorf("label %q is not YYYY-MM", s.Labels[i])
		}
		if s.Labels[i] != wantLabels[i] || s.Values[i] != wantValues[i] {
			t.Errorf("bucket %d = (%s, %d), want (%s, %d)",
				i, s.Labels[i], s.Values[i], wantLabels[i], wantValues[i])
		}
	}
	if !sort.StringsAreSorted(s.Labels) {
		t.Errorf("labels not chronological: %v", s.Labels)
	}
}

// seedPopularity creates events A, B, C with 5, 9 and 2 attendees plus one
// event nobody registered for.
func seedPopularity(t *testing.T, store *Store) {
	t.Helper()
	creator := seedUser(t, store, "organizer")
	hall := seedVenue(t, store, "Town Hall")
	when := time.Date(2025, 7, 1, 19, 0, 0, 0, time.UTC)

	counts := map[string]int{"A": 5, "B": 9, "C": 2}
	events := map[string]Event{}
	for _, title := range []string{"A", "B", "C"} {
		events[title] = seedEvent(t, store, creator, hall, title, when)
	}
	seedEvent(t, store, creator, hall, "Empty", when)

	guest := 0
	for _, title := range []string{"A", "B", "C"} {
		for i := 0; i < counts[title]; i++ {
			u := seedUser(t, store, fmt.Sprintf("guest%d", guest))
			guest++
			seedAttendee(t, store, u, events[title])
		}
	}
}

func TestEventPopularityOrdering(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	seedPopularity(t, store)

	s, err := NewAnalytics(db).EventPopularity(context.Background())
	if err != nil {
		t.Fatalf("EventPopularity: %v", err)
	}

	wantLabels := []string{"B", "A", "C"}
	wantValues := []int64{9, 5, 2}
	if len(s.Labels) != 3 {
		t.Fatalf("series = %v / %v, want 3 buckets (zero-attendee event excluded)", s.Labels, s.Values)
	}
	for i := range wantLabels {
		if s.Labels[i] != wantLabels[i] || s.Values[i] != wantValues[i] {
			t.Errorf("rank %d = (%s, %d), want (%s, %d)",
				i, s.Labels[i], s.Values[i], wantLabels[i], wantValues[i])
		}
	}
}

func TestAttendeesPerEvent(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	seedPopularity(t, store)

	s, err := NewAnalytics(db).AttendeesPerEvent(context.Background())
	if err != nil {
		t.Fatalf("AttendeesPerEvent: %v", err)
	}

	got := map[string]int64{}
	for i, label := range s.Labels {
		got[label] = s.Values[i]
	}
	want := map[string]int64{"A": 5, "B": 9, "C": 2}
	for title, n := range want {
		if got[title] != n {
			t.Errorf("attendees for %s = %d, want %d", title, got[title], n)
		}
	}
	if _, ok := got["Empty"]; ok {
		t.Errorf("zero-attendee event should drop out of the join: %v", got)
	}
}

func TestEventsPerVenue(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	creator := seedUser(t, store, "organizer")
	hall := seedVenue(t, store, "Town Hall")
	park := seedVenue(t, store, "Park")
	seedVenue(t, store, "Unused Arena")
	when := time.Date(2025, 7, 1, 19, 0, 0, 0, time.UTC)
	seedEvent(t, store, creator, hall, "A", when)
	seedEvent(t, store, creator, hall, "B", when)
	seedEvent(t, store, creator, park, "C", when)

	s, err := NewAnalytics(db).EventsPerVenue(context.Background())
	if err != nil {
		t.Fatalf("EventsPerVenue: %v", err)
	}

	got := map[string]int64{}
	for i, label := range s.Labels {
		got[label] = s.Values[i]
	}
	if got["Town Hall"] != 2 || got["Park"] != 1 {
		t.Errorf("events per venue = %v", got)
	}
	if _, ok := got["Unused Arena"]; ok {
		t.Errorf("venue without events should drop out of the join: %v", got)
	}
}

func TestEventDatesDistribution(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	creator := seedUser(t, store, "organizer")
	hall := seedVenue(t, store, "Town Hall")
	// Two events on the same calendar date at different times, one earlier.
	seedEvent(t, store, creator, hall, "A", time.Date(2025, 9, 15, 9, 0, 0, 0, time.UTC))
	seedEvent(t, store, creator, hall, "B", time.Date(2025, 9, 15, 20, 30, 0, 0, time.UTC))
	seedEvent(t, store, creator, hall, "C", time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC))

	s, err := NewAnalytics(db).EventDatesDistribution(context.Background())
	if err != nil {
		t.Fatalf("EventDatesDistribution: %v", err)
	}

	wantLabels := []string{"2025-02-01", "2025-09-15"}
	wantValues := []int64{1, 2}
	if len(s.Labels) != len(wantLabels) {
		t.Fatalf("series = %v / %v, want %v / %v", s.Labels, s.Values, wantLabels, wantValues)
	}
	for i := range wantLabels {
		if s.Labels[i] != wantLabels[i] || s.Values[i] != wantValues[i] {
			t.Errorf("bucket %d = (%s, %d), want (%s, %d)",
				i, s.Labels[i], s.Values[i], wantLabels[i], wantValues[i])
		}
	}
}

func TestEventsPerUserAlphabetical(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	carol := seedUser(t, store, "carol")
	alice := seedUser(t, store, "alice")
	seedUser(t, store, "nobody")
	hall := seedVenue(t, store, "Town Hall")
	when := time.Date(2025, 7, 1, 19, 0, 0, 0, time.UTC)
	seedEvent(t, store, carol, hall, "A", when)
	seedEvent(t, store, carol, hall, "B", when)
	seedEvent(t, store, alice, hall, "C", when)

	s, err := NewAnalytics(db).EventsPerUser(context.Background())
	if err != nil {
		t.Fatalf("EventsPerUser: %v", err)
	}

	wantLabels := []string{"alice", "carol"}
	wantValues := []int64{1, 2}
	if len(s.Labels) != len(wantLabels) {
		t.Fatalf("series = %v / %v, want %v / %v", s.Labels, s.Values, wantLabels, wantValues)
	}
	for i := range wantLabels {
		if s.Labels[i] != wantLabels[i] || s.Values[i] != wantValues[i] {
			t.Errorf("bucket %d = (%s, %d), want (%s, %d)",
				i, s.Labels[i], s.Values[i], wantLabels[i], wantValues[i])
		}
	}
}

func TestAverageAttendeesExcludesEmptyEvents(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	creator := seedUser(t, store, "organizer")
	hall := seedVenue(t, store, "Town Hall")
	when := time.Date(2025, 7, 1, 19, 0, 0, 0, time.UTC)

	counts := []int{2, 4, 6}
	guest := 0
	for i, n := range counts {
		e := seedEvent(t, store, creator, hall, fmt.Sprintf("E%d", i), when)
		for j := 0; j < n; j++ {
			u := seedUser(t, store, fmt.Sprintf("guest%d", guest))
			guest++
			seedAttendee(t, store, u, e)
		}
	}
	// An event with zero attendees must not drag the average down to 3.0.
	seedEvent(t, store, creator, hall, "Empty", when)

	avg, err := NewAnalytics(db).AverageAttendees(context.Background())
	if err != nil {
		t.Fatalf("AverageAttendees: %v", err)
	}
	if avg != 4.0 {
		t.Fatalf("average = %v, want 4.00", avg)
	}
}

func TestAverageAttendeesNoRegistrations(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	creator := seedUser(t, store, "organizer")
	hall := seedVenue(t, store, "Town Hall")
	seedEvent(t, store, creator, hall, "Empty", time.Now().UTC())

	avg, err := NewAnalytics(db).AverageAttendees(context.Background())
	if err != nil {
		t.Fatalf("AverageAttendees: %v", err)
	}
	if avg != 0 {
		t.Fatalf("average with no registrations = %v, want 0", avg)
	}
}

func TestAverageAttendeesRounding(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	creator := seedUser(t, store, "organizer")
	hall := seedVenue(t, store, "Town Hall")
	when := time.Date(2025, 7, 1, 19, 0, 0, 0, time.UTC)

	// Counts 1 and 2 average to 1.5; counts 1,1,2 average to 1.3333 → 1.33.
	counts := []int{1, 1, 2}
	guest := 0
	for i, n := range counts {
		e := seedEvent(t, store, creator, hall, fmt.Sprintf("E%d", i), when)
		for j := 0; j < n; j++ {
			u := seedUser(t, store, fmt.Sprintf("guest%d", guest))
			guest++
			seedAttendee(t, store, u, e)
		}
	}

	avg, err := NewAnalytics(db).AverageAttendees(context.Background())
	if err != nil {
		t.Fatalf("AverageAttendees: %v", err)
	}
	if avg != 1.33 {
		t.Fatalf("average = %v, want 1.33", avg)
	}
}
