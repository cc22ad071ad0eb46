package calendar_test

import (
	"context"
	"net/http"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/teemow/caltodo/internal/calendar"
	"github.com/teemow/caltodo/internal/calendar/calendartest"
)

func newTestClient(t *testing.T, srv *calendartest.Server, token string, timeout time.Duration) *calendar.Client {
	t.Helper()

	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client, err := calendar.NewClient(context.Background(), httpClient, calendar.Options{
		Endpoint: srv.Endpoint(),
		Timeout:  timeout,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresHTTPClient(t *testing.T) {
	_, err := calendar.NewClient(context.Background(), nil, calendar.Options{})
	assert.Error(t, err)
}

func TestInsertAndListUpcoming(t *testing.T) {
	srv := calendartest.NewServer()
	defer srv.Close()
	client := newTestClient(t, srv, "tok", 0)
	ctx := context.Background()

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	start := time.Now().Add(2 * time.Hour).In(seoul).Truncate(time.Second)

	created, err := client.Insert(ctx, calendar.DefaultCalendarID, calendar.EventInput{
		Summary:  "우유 사기",
		Start:    start,
		End:      start.Add(time.Hour),
		TimeZone: "Asia/Seoul",
		Reminders: []calendar.Reminder{
			{Method: calendar.ReminderPopup, Minutes: 1440},
			{Method: calendar.ReminderPopup, Minutes: 120},
			{Method: calendar.ReminderPopup, Minutes: 30},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "우유 사기", created.Summary)
	assert.True(t, created.Start.Equal(start))
	assert.False(t, created.AllDay)
	assert.Len(t, created.Reminders, 3)

	stored := srv.Events("primary")
	require.Len(t, stored, 1)
	assert.Equal(t, "Asia/Seoul", stored[0].Start.TimeZone)
	require.NotNil(t, stored[0].Reminders)
	assert.False(t, stored[0].Reminders.UseDefault)
	assert.Equal(t, int64(1440), stored[0].Reminders.Overrides[0].Minutes)

	events, err := client.ListUpcoming(ctx, calendar.DefaultCalendarID, time.Now(), 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, created.ID, events[0].ID)
	assert.Equal(t, []string{"tok", "tok"}, srv.Tokens())
}

func TestListUpcoming_OrderAndLimit(t *testing.T) {
	srv := calendartest.NewServer()
	defer srv.Close()
	client := newTestClient(t, srv, "tok", 0)

	base := time.Now().UTC().Truncate(time.Second)
	for _, offset := range []int{3, 1, 2, -2} {
		at := base.Add(time.Duration(offset) * time.Hour)
		srv.AddEvent("primary", &gcal.Event{
			Summary: "event",
			Start:   &gcal.EventDateTime{DateTime: at.Format(time.RFC3339)},
			End:     &gcal.EventDateTime{DateTime: at.Add(time.Hour).Format(time.RFC3339)},
		})
	}

	events, err := client.ListUpcoming(context.Background(), "primary", base, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Start.Equal(base.Add(time.Hour)))
	assert.True(t, events[1].Start.Equal(base.Add(2*time.Hour)))
}

func TestListUpcoming_AllDayAndMissingStart(t *testing.T) {
	srv := calendartest.NewServer()
	defer srv.Close()
	client := newTestClient(t, srv, "tok", 0)

	day := time.Now().AddDate(0, 0, 3).UTC().Format("2006-01-02")
	srv.AddEvent("primary", &gcal.Event{
		Summary: "holiday",
		Start:   &gcal.EventDateTime{Date: day},
		End:     &gcal.EventDateTime{Date: day},
	})

	events, err := client.ListUpcoming(context.Background(), "primary", time.Now(), 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
	assert.True(t, events[0].HasStart())
	assert.Equal(t, day, events[0].Start.Format("2006-01-02"))

	assert.False(t, calendar.Event{ID: "x"}.HasStart())
}

func TestDelete(t *testing.T) {
	srv := calendartest.NewServer()
	defer srv.Close()
	client := newTestClient(t, srv, "tok", 0)
	ctx := context.Background()

	ev := srv.AddEvent("primary", &gcal.Event{Summary: "gone soon"})
	require.NoError(t, client.Delete(ctx, "primary", ev.Id))
	assert.Empty(t, srv.Events("primary"))

	err := client.Delete(ctx, "primary", ev.Id)
	require.Error(t, err)
	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
	assert.False(t, calendar.IsUnauthorized(err))
}

func TestErrorClassification(t *testing.T) {
	srv := calendartest.NewServer()
	defer srv.Close()
	ctx := context.Background()

	srv.RejectToken("expired")
	client := newTestClient(t, srv, "expired", 0)
	_, err := client.ListUpcoming(ctx, "primary", time.Now(), 50)
	require.Error(t, err)
	assert.True(t, calendar.IsUnauthorized(err))

	ok := newTestClient(t, srv, "tok", 0)
	srv.FailNext(http.StatusInternalServerError)
	_, err = ok.ListUpcoming(ctx, "primary", time.Now(), 50)
	require.Error(t, err)
	assert.False(t, calendar.IsUnauthorized(err))
	assert.False(t, calendar.IsTimeout(err))
}

func TestTimeout(t *testing.T) {
	srv := calendartest.NewServer()
	defer srv.Close()
	srv.SetDelay(500 * time.Millisecond)

	client := newTestClient(t, srv, "tok", 20*time.Millisecond)
	_, err := client.ListUpcoming(context.Background(), "primary", time.Now(), 50)
	require.Error(t, err)
	assert.True(t, calendar.IsTimeout(err))
	assert.False(t, calendar.IsUnauthorized(err))
}
