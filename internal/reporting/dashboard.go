package reporting

import (
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"zip-routing-api-go/internal/routing"
)

const dashboardTmpl = `<!DOCTYPE html>
<html>
<head>
<title>ZIP Router Dashboard</title>
<meta http-equiv="refresh" content="30">
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: left; font-size: 0.9em; }
th { background: #f0f0f0; }
.ok { color: #2a7d2a; }
.bad { color: #b33; }
.muted { color: #888; }
</style>
</head>
<body>
<h1>ZIP Router Dashboard</h1>
<p class="muted">Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>

<h2>Totals</h2>
<table>
<tr><th>Total calls</th><th>Successful</th><th>Failed</th><th>Unrouted</th><th>Fallbacks used</th><th>Avg response (ms)</th></tr>
<tr>
<td>{{.Analytics.TotalCalls}}</td>
<td class="ok">{{.Analytics.Successful}}</td>
<td class="bad">{{.Analytics.Failed}}</td>
<td>{{.Analytics.Unrouted}}</td>
<td>{{.Analytics.FallbacksUsed}}</td>
<td>{{printf "%.1f" .Analytics.AvgResponseTimeMs}}</td>
</tr>
</table>

<h2>Calls by tier</h2>
<table>
<tr><th>Tier</th><th>Calls</th></tr>
{{range $tier, $n := .Analytics.ByTier}}<tr><td>{{$tier}}</td><td>{{$n}}</td></tr>
{{end}}
</table>

<h2>Recent calls</h2>
<table>
<tr><th>Time</th><th>Caller</th><th>ZIP</th><th>Original</th><th>Chosen</th><th>Fallback</th><th>Status</th><th>ms</th></tr>
{{range .Recent}}<tr>
<td>{{.Timestamp.Format "15:04:05"}}</td>
<td>{{.CallerID}}</td>
<td>{{.ZipCode}}</td>
<td>{{.OriginalTier}}</td>
<td>{{.ChosenTier}}</td>
<td>{{if .FallbackUsed}}yes{{else}}no{{end}}</td>
<td class="{{if eq .Status "success"}}ok{{else}}bad{{end}}">{{.Status}}</td>
<td>{{.ResponseTimeMs}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`

var dashboard = template.Must(template.New("dashboard").Parse(dashboardTmpl))

type dashboardData struct {
	GeneratedAt time.Time
	Analytics   routing.Analytics
	Recent      []routing.CallRecord
}

// Dashboard renders the HTML analytics page from the engine's recorder.
// Read-only over the recorder snapshot; safe under concurrent writes.
func Dashboard(engine *routing.Engine, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		data := dashboardData{
			GeneratedAt: time.Now(),
			Analytics:   engine.Analytics(),
			Recent:      engine.Recent(50),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := dashboard.Execute(w, data); err != nil {
			logger.Error("failed to render dashboard", zap.Error(err))
		}
	}
}
