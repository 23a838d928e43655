package export_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-dashboard/internal/deliver"
	"weather-dashboard/internal/export"
	"weather-dashboard/internal/fetch"
	"weather-dashboard/internal/model"
)

// ---- fakes -------------------------------------------------------------------

type fakeRegion struct {
	mu     sync.Mutex
	events []string
}

func (r *fakeRegion) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "clear")
}

func (r *fakeRegion) Show(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "show:"+msg)
}

func (r *fakeRegion) shown() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if m, ok := strings.CutPrefix(e, "show:"); ok {
			out = append(out, m)
		}
	}
	return out
}

type fakeDeliverer struct {
	mu    sync.Mutex
	files []deliver.File
	err   error
}

func (d *fakeDeliverer) Deliver(_ context.Context, f deliver.File) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	d.files = append(d.files, f)
	return "mem://" + f.Name, nil
}

var _ export.Region = (*fakeRegion)(nil)
var _ deliver.Deliverer = (*fakeDeliverer)(nil)

// ---- helpers -----------------------------------------------------------------

type harness struct {
	exp    *export.Exporter
	region *fakeRegion
	out    *fakeDeliverer
	srv    *httptest.Server
	query  chan string
}

func newHarness(t *testing.T, h http.HandlerFunc) *harness {
	t.Helper()
	hs := &harness{region: &fakeRegion{}, out: &fakeDeliverer{}, query: make(chan string, 8)}
	hs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hs.query <- r.URL.RawQuery
		h(w, r)
	}))
	t.Cleanup(hs.srv.Close)

	cl, err := fetch.New(fetch.Options{Retry: 3})
	require.NoError(t, err)
	hs.exp = export.New(export.Options{
		Client:     cl,
		Endpoint:   hs.srv.URL + "/datasets/download/",
		CSRFFields: []string{"csrfmiddlewaretoken"},
		Region:     hs.region,
		Deliverer:  hs.out,
	})
	return hs
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

var dateRange = model.FormInputs{
	{Name: "csrfmiddlewaretoken", Value: "tok"},
	{Name: "start_date", Value: "2024-01-01"},
	{Name: "end_date", Value: "2024-01-02"},
}

// ---- stream ------------------------------------------------------------------

func TestExport_StreamResponse(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte("ID,JD\n1,2460311.5\n"))
	})
	h.exp.Export(context.Background(), dateRange)

	assert.Equal(t, "start_date=2024-01-01&end_date=2024-01-02&dl=csv", <-h.query)
	require.Len(t, h.out.files, 1)
	assert.Equal(t, "weather_data.csv", h.out.files[0].Name)
	assert.Equal(t, "text/csv", h.out.files[0].MediaType)
	assert.Equal(t, "ID,JD\n1,2460311.5\n", string(h.out.files[0].Data))
	assert.Equal(t, []string{"clear"}, h.region.events)
}

func TestExport_StreamUsesServerFilename(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="../station_2024.csv"`)
		_, _ = w.Write([]byte("x"))
	})
	h.exp.Export(context.Background(), dateRange)
	require.Len(t, h.out.files, 1)
	assert.Equal(t, "station_2024.csv", h.out.files[0].Name)
}

// ---- structured --------------------------------------------------------------

func TestExport_StructuredSuccessBuildsCSV(t *testing.T) {
	h := newHarness(t, jsonReply(http.StatusOK, `{"status":"success","data":[
		{"id":1,"jd":2460311.5,"temperature":20.5,"note":"a,b\nc","is_raining":1,"merged":false,"added_on":"2024-01-01"}
	]}`))
	h.exp.Export(context.Background(), dateRange)

	require.Len(t, h.out.files, 1)
	f := h.out.files[0]
	assert.Equal(t, "weather_data.csv", f.Name)
	lines := strings.Split(strings.TrimRight(string(f.Data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID,JD,Temperature,"))
	assert.Equal(t, "1,2460311.5,20.5,,,,,,,,true,,,a b c,false,2024-01-01,", lines[1])
	assert.Empty(t, h.region.shown())
}

func TestExport_StructuredErrorStatus(t *testing.T) {
	h := newHarness(t, jsonReply(http.StatusOK, `{"status":"error","message":"No data in range"}`))
	h.exp.Export(context.Background(), dateRange)
	assert.Empty(t, h.out.files)
	assert.Equal(t, []string{"No data in range"}, h.region.shown())
}

func TestExport_MalformedSuccessPayload(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `<html>oops</html>`,
		"unknown status": `{"status":"pending"}`,
		"no status":      `{"data":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, jsonReply(http.StatusOK, body))
			h.exp.Export(context.Background(), dateRange)
			assert.Empty(t, h.out.files)
			assert.Equal(t, []string{export.FallbackMessage}, h.region.shown())
		})
	}
}

// ---- failures ----------------------------------------------------------------

func TestExport_ValidationErrors(t *testing.T) {
	h := newHarness(t, jsonReply(http.StatusBadRequest, `{"errors": {"end_date": ["must be after start_date"]}}`))
	h.exp.Export(context.Background(), dateRange)

	assert.Empty(t, h.out.files)
	assert.Equal(t, []string{"clear", "show:end_date: must be after start_date"}, h.region.events)
}

func TestExport_ValidationErrorsKeepFieldOrder(t *testing.T) {
	h := newHarness(t, jsonReply(http.StatusBadRequest, `{"errors": {
		"start_date": ["required", "bad format"],
		"__all__": ["range too large"],
		"end_date": [{"message": "must be after start_date", "code": "invalid"}]
	}}`))
	h.exp.Export(context.Background(), dateRange)
	assert.Equal(t, []string{
		"start_date: required, bad format\nrange too large\nend_date: must be after start_date",
	}, h.region.shown())
}

func TestExport_GenericAndFallbackMessages(t *testing.T) {
	cases := []struct {
		name string
		h    http.HandlerFunc
		want string
	}{
		{"message", jsonReply(http.StatusInternalServerError, `{"message":"database unavailable"}`), "database unavailable"},
		{"empty json", jsonReply(http.StatusForbidden, `{}`), export.FallbackMessage},
		{"errors not a mapping", jsonReply(http.StatusBadRequest, `{"message":"Bad range","errors":"oops"}`), "Bad range"},
		{"errors list", jsonReply(http.StatusBadRequest, `{"message":"Bad range","errors":["x"]}`), "Bad range"},
		{"html body", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<h1>bad gateway</h1>"))
		}, export.FallbackMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.h)
			h.exp.Export(context.Background(), dateRange)
			assert.Equal(t, []string{tc.want}, h.region.shown())
			assert.Len(t, h.query, 1, "exactly one request, no retry")
		})
	}
}

func TestExport_TransportFailure(t *testing.T) {
	h := newHarness(t, jsonReply(http.StatusOK, `{}`))
	h.srv.Close()
	h.exp.Export(context.Background(), dateRange)
	assert.Equal(t, []string{export.FallbackMessage}, h.region.shown())
	assert.Empty(t, h.out.files)
}

func TestExport_DeliveryFailure(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("x"))
	})
	h.out.err = errors.New("disk full")
	h.exp.Export(context.Background(), dateRange)
	assert.Equal(t, []string{export.FallbackMessage}, h.region.shown())
}

// ---- repetition --------------------------------------------------------------

func TestExport_TwiceProducesTwoDownloadsAndClearsEachTime(t *testing.T) {
	var served atomic.Bool
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if !served.Swap(true) {
			jsonReply(http.StatusBadRequest, `{"errors":{"end_date":["must be after start_date"]}}`)(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("ok"))
	})
	h.exp.Export(context.Background(), dateRange)
	h.exp.Export(context.Background(), dateRange)
	h.exp.Export(context.Background(), dateRange)

	assert.Equal(t, []string{"clear", "show:end_date: must be after start_date", "clear", "clear"}, h.region.events)
	assert.Len(t, h.out.files, 2)
}

func TestFormatFieldErrors(t *testing.T) {
	got := export.FormatFieldErrors(export.FieldErrors{
		{Field: "__all__", Messages: []string{"x", "y"}},
		{Field: "time_resolution", Messages: []string{"invalid choice"}},
	})
	assert.Equal(t, "x, y\ntime_resolution: invalid choice", got)
}

func TestFailure_Is(t *testing.T) {
	err := error(&export.Failure{Kind: export.ErrValidation, Message: "m"})
	assert.True(t, errors.Is(err, export.ErrValidation))
	assert.False(t, errors.Is(err, export.ErrTransport))
}
