package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/farmbot/internal/station"
)

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Send(context.Context, Event) error { return errors.New("boom") }

type blockingSink struct{ release chan struct{} }

func (blockingSink) Name() string { return "blocking" }
func (b blockingSink) Send(ctx context.Context, _ Event) error {
	<-b.release
	return nil
}

func TestDispatcher_DeliversInOrderAndSurvivesFailingSink(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(zerolog.Nop(), 8, time.Second, failingSink{}, rec)

	done := make(chan struct{})
	go func() {
		_ = d.Run(context.Background())
		close(done)
	}()

	d.Post(Event{Kind: StationCompleted, Station: "crop"})
	d.Post(Event{Kind: LapCompleted})
	d.Post(Event{Kind: Stopped})
	d.Close()
	<-done

	assert.Equal(t, []Kind{StationCompleted, LapCompleted, Stopped}, rec.Kinds())
	assert.False(t, rec.Events()[0].At.IsZero())
}

func TestDispatcher_PostNeverBlocks(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(zerolog.Nop(), 1, 0, sink)
	go func() { _ = d.Run(context.Background()) }()
	defer func() {
		close(sink.release)
		d.Close()
	}()

	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Post(Event{Kind: StationCompleted})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Positive(t, d.Dropped())
}

func TestDispatcher_PostAfterCloseIsDropped(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), 1, 0)
	d.Close()
	d.Close()
	d.Post(Event{Kind: Stopped})
	assert.NoError(t, d.Run(context.Background()))
}

func TestDiscord_JSONEmbed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	stats := &station.Statistics{
		Station:  "crop",
		Took:     93 * time.Second,
		Produced: map[string]int{"Crop": 1200},
		Refilled: true,
	}
	err := NewDiscord(srv.URL).Send(context.Background(), Event{Kind: StationCompleted, Station: "crop", Stats: stats, RunID: "r1", At: time.Now()})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "crop completed", e.Title)
	assert.Equal(t, colorInfo, e.Color)
	assert.Contains(t, e.Fields, discordField{Name: "Crop", Value: "1,200", Inline: true})
	assert.Contains(t, e.Fields, discordField{Name: "Took", Value: "1m33s", Inline: true})
	assert.Contains(t, e.Fields, discordField{Name: "Refilled", Value: "yes", Inline: true})
	assert.Equal(t, "run r1", e.Footer.Text)
}

func TestDiscord_ScreenshotIsMultipart(t *testing.T) {
	var (
		payload string
		file    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			data, _ := io.ReadAll(part)
			switch part.FormName() {
			case "payload_json":
				payload = string(data)
			case "files[0]":
				file = data
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewDiscord(srv.URL).Send(context.Background(), Event{
		Kind:       ErrorOccurred,
		Station:    "grinding",
		Err:        "container not accessible",
		Screenshot: []byte("png-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), file)
	assert.Contains(t, payload, "attachment://screenshot.png")
	assert.Contains(t, payload, "grinding failed")
}

func TestDiscord_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscord(srv.URL).Send(context.Background(), Event{Kind: Stopped})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "429"))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestBuildEmbed_Totals(t *testing.T) {
	totals := station.NewTotals(time.Now().Add(-2 * time.Hour))
	totals.Laps = 3
	totals.Produced["Gacha Crystal"] = 4521

	e := buildEmbed(Event{Kind: LapCompleted, Totals: totals})
	assert.Equal(t, "Lap completed", e.Title)
	assert.Contains(t, e.Fields, discordField{Name: "Laps", Value: "3", Inline: true})
	assert.Contains(t, e.Fields, discordField{Name: "Gacha Crystal", Value: "4,521", Inline: true})
	assert.Contains(t, e.Fields, discordField{Name: "Running since", Value: "2 hours ago", Inline: true})
}
