package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// App bundles the store and analytics behind the gin handlers. One instance
// serves the whole process; each handler works against the request context.
type App struct {
	store     *Store
	analytics *Analytics
}

func NewApp(db *gorm.DB) *App {
	return &App{store: NewStore(db), analytics: NewAnalytics(db)}
}

// -----------------------------
// Helpers
// -----------------------------

func jsonError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

// storeStatus maps repository errors onto the response taxonomy: missing ids
// are 404, duplicates are validation failures, the rest stays a generic 500.
func storeStatus(c *gin.Context, err error, duplicateMsg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		jsonError(c, http.StatusNotFound, "not found")
	case errors.Is(err, ErrDuplicate):
		jsonError(c, http.StatusBadRequest, duplicateMsg)
	default:
		jsonError(c, http.StatusInternalServerError, "operation failed")
	}
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

// getUserIDFromContext expects AuthMiddleware to have set "user_id".
func getUserIDFromContext(c *gin.Context) (uint, bool) {
	uid, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := uid.(uint)
	return id, ok
}

// parseEventDate accepts the datetime-local form format first, RFC3339 as a
// fallback for API clients.
func parseEventDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// -----------------------------
// Landing
// -----------------------------

func (app *App) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "index", "message": "Event Management System"})
}

// Visualizations is the dashboard page model: the chart feeds the frontend
// polls for.
func (app *App) Visualizations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"page": "visualizations",
		"charts": []string{
			"/api/user_registration_trends",
			"/api/event_popularity",
			"/api/events_per_venue",
			"/api/attendees_per_event",
			"/api/event_dates_distribution",
			"/api/events_per_user",
			"/api/average_attendees",
		},
	})
}

// -----------------------------
// Users
// -----------------------------

func (app *App) ListUsers(c *gin.Context) {
	users, err := app.store.ListUsers(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (app *App) AddUserPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "add_user"})
}

func (app *App) AddUser(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "username, email and password are required")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not add user")
		return
	}

	user := User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := app.store.CreateUser(c.Request.Context(), &user); err != nil {
		storeStatus(c, err, "Username or email is already registered.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User added successfully!", "user": user})
}

func (app *App) UpdateUserPage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := app.store.UserByID(c.Request.Context(), id)
	if err != nil {
		storeStatus(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": "update_user", "user": user})
}

func (app *App) UpdateUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "username and email are required")
		return
	}

	ctx := c.Request.Context()
	user, err := app.store.UserByID(ctx, id)
	if err != nil {
		storeStatus(c, err, "")
		return
	}

	user.Username = req.Username
	user.Email = req.Email
	// Blank password means keep the current hash.
	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			jsonError(c, http.StatusInternalServerError, "could not update user")
			return
		}
		user.PasswordHash = hash
	}

	if err := app.store.UpdateUser(ctx, &user); err != nil {
		storeStatus(c, err, "Username or email is already registered.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully!", "user": user})
}

func (app *App) DeleteUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := app.store.DeleteUser(c.Request.Context(), id); err != nil {
		storeStatus(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully!"})
}

// -----------------------------
// Venues
// -----------------------------

func (app *App) ListVenues(c *gin.Context) {
	venues, err := app.store.ListVenues(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not list venues")
		return
	}
	c.JSON(http.StatusOK, gin.H{"venues": venues})
}

func (app *App) AddVenuePage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "add_venue"})
}

func (app *App) AddVenue(c *gin.Context) {
	var req VenueRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "name is required")
		return
	}

	venue := Venue{Name: strings.TrimSpace(req.Name), Location: req.Location, Capacity: req.Capacity}
	if err := app.store.CreateVenue(c.Request.Context(), &venue); err != nil {
		storeStatus(c, err, "venue already exists")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Venue added successfully!", "venue": venue})
}

func (app *App) UpdateVenuePage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	venue, err := app.store.VenueByID(c.Request.Context(), id)
	if err != nil {
		storeStatus(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": "update_venue", "venue": venue})
}

func (app *App) UpdateVenue(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req VenueRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "name is required")
		return
	}

	venue := Venue{VenueID: id, Name: strings.TrimSpace(req.Name), Location: req.Location, Capacity: req.Capacity}
	if err := app.store.UpdateVenue(c.Request.Context(), &venue); err != nil {
		storeStatus(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Venue updated successfully!", "venue": venue})
}

func (app *App) DeleteVenue(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := app.store.DeleteVenue(c.Request.Context(), id); err != nil {
		storeStatus(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Venue deleted successfully!"})
}

// -----------------------------
// Events
// -----------------------------

func (app *App) ListEvents(c *gin.Context) {
	events, err := app.store.ListEvents(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not list events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// AddEventPage returns what the add_event form renders: the users and venues
// its select boxes offer.
func (app *App) AddEventPage(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := app.store.ListUsers(ctx)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not load form data")
		return
	}
	venues, err := app.store.ListVenues(ctx)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not load form data")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": "add_event", "users": users, "venues": venues})
}

func (app *App) AddEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "user_id, venue_id, title and event_date are required")
		return
	}

	eventDate, err := parseEventDate(req.EventDate)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid event_date format")
		return
	}

	event := Event{
		UserID:      req.UserID,
		VenueID:     req.VenueID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		EventDate:   eventDate,
	}
	if err := app.store.CreateEvent(c.Request.Context(), &event); err != nil {
		storeStatus(c, err, "event already exists")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Event added successfully!", "event": event})
}

func (app *App) UpdateEventPage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	event, err := app.store.EventByID(ctx, id)
	if err != nil {
		storeStatus(c, err, "")
		return
	}
	users, err := app.store.ListUsers(ctx)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not load form data")
		return
	}
	venues, err := app.store.ListVenues(ctx)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not load form data")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": "update_event", "event": event, "users": users, "venues": venues})
}

func (app *App) UpdateEvent(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBind(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "user_id, venue_id, title and event_date are required")
		return
	}

	eventDate, err := parseEventDate(req.EventDate)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid event_date format")
		return
	}

	event := Event{
		EventID:     id,
		UserID:      req.UserID,
		VenueID:     req.VenueID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		EventDate:   eventDate,
	}
	if err := app.store.UpdateEvent(c.Request.Context(), &event); err != nil {
		storeStatus(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event updated successfully!", "event": event})
}

func (app *App) DeleteEvent(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := app.store.DeleteEvent(c.Request.Context(), id); err != nil {
		storeStatus(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event and associated attendees deleted successfully!"})
}

// -----------------------------
// Registration
// -----------------------------

func (app *App) RegisterEvent(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		redirectToLogin(c)
		return
	}
	eventID, ok := idParam(c, "id")
	if !ok {
		return
	}

	attendee, err := app.store.RegisterAttendee(c.Request.Context(), userID, eventID)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			c.JSON(http.StatusOK, gin.H{"message": "You are already registered for this event."})
			return
		}
		storeStatus(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "You have successfully registered for the event.",
		"attendee": attendee,
	})
}

// -----------------------------
// Analytics API
// -----------------------------

func (app *App) serveSeries(c *gin.Context, query func(ctx context.Context) (Series, error)) {
	s, err := query(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "query failed")
		return
	}
	c.JSON(http.StatusOK, s)
}

func (app *App) APIUserRegistrationTrends(c *gin.Context) {
	app.serveSeries(c, app.analytics.UserRegistrationTrends)
}

func (app *App) APIEventPopularity(c *gin.Context) {
	app.serveSeries(c, app.analytics.EventPopularity)
}

func (app *App) APIEventsPerVenue(c *gin.Context) {
	app.serveSeries(c, app.analytics.EventsPerVenue)
}

func (app *App) APIAttendeesPerEvent(c *gin.Context) {
	app.serveSeries(c, app.analytics.AttendeesPerEvent)
}

func (app *App) APIEventDatesDistribution(c *gin.Context) {
	app.serveSeries(c, app.analytics.EventDatesDistribution)
}

func (app *App) APIEventsPerUser(c *gin.Context) {
	app.serveSeries(c, app.analytics.EventsPerUser)
}

func (app *App) APIAverageAttendees(c *gin.Context) {
	value, err := app.analytics.AverageAttendees(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "query failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}
