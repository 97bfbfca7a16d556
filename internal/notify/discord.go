package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	colorInfo    = 0x2ecc71
	colorLap     = 0x3498db
	colorError   = 0xe74c3c
	colorStopped = 0x95a5a6
)

// Discord posts events to a webhook as embeds. Error screenshots are sent
// as an attachment shown inside the embed.
type Discord struct {
	URL    string
	Client *http.Client
}

func NewDiscord(url string) *Discord {
	return &Discord{URL: url, Client: &http.Client{}}
}

func (*Discord) Name() string { return "discord" }

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Image       *discordImage  `json:"image,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordFooter struct {
	Text string `json:"text"`
}

const screenshotName = "screenshot.png"

func (d *Discord) Send(ctx context.Context, e Event) error {
	embed := buildEmbed(e)
	if len(e.Screenshot) > 0 {
		embed.Image = &discordImage{URL: "attachment://" + screenshotName}
	}
	payload, err := json.Marshal(discordPayload{Username: "farmbot", Embeds: []discordEmbed{embed}})
	if err != nil {
		return err
	}

	var (
		body        io.Reader = bytes.NewReader(payload)
		contentType           = "application/json"
	)
	if len(e.Screenshot) > 0 {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		if err := mw.WriteField("payload_json", string(payload)); err != nil {
			return err
		}
		fw, err := mw.CreateFormFile("files[0]", screenshotName)
		if err != nil {
			return err
		}
		if _, err := fw.Write(e.Screenshot); err != nil {
			return err
		}
		if err := mw.Close(); err != nil {
			return err
		}
		body, contentType = buf, mw.FormDataContentType()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

func buildEmbed(e Event) discordEmbed {
	embed := discordEmbed{
		Timestamp: e.At.UTC().Format(time.RFC3339),
		Footer:    &discordFooter{Text: "run " + e.RunID},
	}

	switch e.Kind {
	case StationCompleted:
		embed.Title = fmt.Sprintf("%s completed", e.Station)
		embed.Color = colorInfo
	case ErrorOccurred:
		embed.Title = fmt.Sprintf("%s failed", e.Station)
		embed.Description = e.Err
		embed.Color = colorError
	case LapCompleted:
		embed.Title = "Lap completed"
		embed.Color = colorLap
	case Recovered:
		embed.Title = "Recovered"
		embed.Description = e.Err
		embed.Color = colorInfo
	case Stopped:
		embed.Title = "Stopped"
		embed.Description = e.Err
		embed.Color = colorStopped
	default:
		embed.Title = string(e.Kind)
	}

	if s := e.Stats; s != nil {
		embed.Fields = append(embed.Fields, discordField{Name: "Took", Value: s.Took.Round(time.Second).String(), Inline: true})
		if s.Phase != "" {
			embed.Fields = append(embed.Fields, discordField{Name: "Phase", Value: s.Phase, Inline: true})
		}
		if s.Refilled {
			embed.Fields = append(embed.Fields, discordField{Name: "Refilled", Value: "yes", Inline: true})
		}
		embed.Fields = append(embed.Fields, countFields(s.Produced)...)
	}
	if t := e.Totals; t != nil {
		embed.Fields = append(embed.Fields,
			discordField{Name: "Laps", Value: humanize.Comma(int64(t.Laps)), Inline: true},
			discordField{Name: "Running since", Value: humanize.Time(t.Started), Inline: true},
		)
		embed.Fields = append(embed.Fields, countFields(t.Produced)...)
	}
	return embed
}

func countFields(counts map[string]int) []discordField {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]discordField, 0, len(names))
	for _, name := range names {
		out = append(out, discordField{Name: name, Value: humanize.Comma(int64(counts[name])), Inline: true})
	}
	return out
}
