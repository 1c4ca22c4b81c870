package main

import (
	"context"
	"database/sql"
	"math"

	"gorm.io/gorm"
)

// Series is the chart payload shape: parallel label and value slices.
type Series struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

// Analytics runs the dashboard aggregations. Each call re-executes its query
// against current committed state; nothing is cached.
type Analytics struct {
	db *gorm.DB
}

func NewAnalytics(db *gorm.DB) *Analytics {
	return &Analytics{db: db}
}

type seriesRow struct {
	Label string
	Value int64
}

func (a *Analytics) series(ctx context.Context, query string) (Series, error) {
	var rows []seriesRow
	if err := a.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return Series{}, storeErr(err)
	}
	s := Series{Labels: make([]string, 0, len(rows)), Values: make([]int64, 0, len(rows))}
	for _, r := range rows {
		s.Labels = append(s.Labels, r.Label)
		s.Values = append(s.Values, r.Value)
	}
	return s, nil
}

// Month and date bucket labels have no portable SQL spelling, so the two
// expressions switch on the active dialect. Both produce the exact label
// formats the charts expect: "YYYY-MM" and "YYYY-MM-DD".
func (a *Analytics) monthExpr(col string) string {
	if a.db.Dialector.Name() == "postgres" {
		return "to_char(date_trunc('month', " + col + "), 'YYYY-MM')"
	}
	return "strftime('%Y-%m', " + col + ")"
}

func (a *Analytics) dateExpr(col string) string {
	if a.db.Dialector.Name() == "postgres" {
		return "to_char(" + col + "::date, 'YYYY-MM-DD')"
	}
	return "strftime('%Y-%m-%d', " + col + ")"
}

// UserRegistrationTrends groups users by signup month, oldest first.
func (a *Analytics) UserRegistrationTrends(ctx context.Context) (Series, error) {
	return a.series(ctx, `
		SELECT `+a.monthExpr("created_at")+` AS label, COUNT(user_id) AS value
		FROM users
		GROUP BY label
		ORDER BY label`)
}

// EventPopularity counts attendees per event title, most popular first.
// Events nobody registered for drop out of the inner join.
func (a *Analytics) EventPopularity(ctx context.Context) (Series, error) {
	return a.series(ctx, `
		SELECT events.title AS label, COUNT(attendees.attendee_id) AS value
		FROM events
		JOIN attendees ON attendees.event_id = events.event_id
		GROUP BY events.title
		ORDER BY value DESC`)
}

// EventsPerVenue counts events per venue name.
func (a *Analytics) EventsPerVenue(ctx context.Context) (Series, error) {
	return a.series(ctx, `
		SELECT venues.name AS label, COUNT(events.event_id) AS value
		FROM venues
		JOIN events ON events.venue_id = venues.venue_id
		GROUP BY venues.name`)
}

// AttendeesPerEvent counts attendees per event title.
func (a *Analytics) AttendeesPerEvent(ctx context.Context) (Series, error) {
	return a.series(ctx, `
		SELECT events.title AS label, COUNT(attendees.attendee_id) AS value
		FROM events
		JOIN attendees ON attendees.event_id = events.event_id
		GROUP BY events.title`)
}

// EventDatesDistribution counts events per calendar date, ascending.
func (a *Analytics) EventDatesDistribution(ctx context.Context) (Series, error) {
	return a.series(ctx, `
		SELECT `+a.dateExpr("event_date")+` AS label, COUNT(event_id) AS value
		FROM events
		GROUP BY label
		ORDER BY label`)
}

// EventsPerUser counts events created per username, alphabetical.
func (a *Analytics) EventsPerUser(ctx context.Context) (Series, error) {
	return a.series(ctx, `
		SELECT users.username AS label, COUNT(events.event_id) AS value
		FROM users
		JOIN events ON events.user_id = users.user_id
		GROUP BY users.username
		ORDER BY users.username`)
}

// AverageAttendees is the mean attendee count over events that have at least
// one attendee, rounded to two decimals. With no registrations at all the
// average is undefined and reported as 0.
func (a *Analytics) AverageAttendees(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := a.db.WithContext(ctx).Raw(`
		SELECT AVG(value) FROM (
			SELECT COUNT(attendees.attendee_id) AS value
			FROM events
			JOIN attendees ON attendees.event_id = events.event_id
			GROUP BY events.event_id
		) per_event`).Scan(&avg).Error
	if err != nil {
		return 0, storeErr(err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return math.Round(avg.Float64*100) / 100, nil
}
