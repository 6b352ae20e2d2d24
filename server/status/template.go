package status

import "html/template"

type statusTemplateDevice struct {
	Path    string
	Class   string
	Family  int32
	Builtin bool
	Running bool
}

type statusTemplateData struct {
	Version     string
	Devices     []statusTemplateDevice
	DeviceCount int
	Log         string

	IsError bool
	Error   string

	CSRFField template.HTML
}

const templateString = `
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no">
  <title>trackpadd status</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", "Roboto", "Helvetica Neue", Arial, sans-serif;
      max-width: 720px;
      margin: 0 auto;
      padding: 20px;
    }

    h1 {
      font-size: 36px;
    }

    p {
      color: #858585;
    }

    .error {
      border: 1px solid orangered;
      border-radius: 4px;
      color: darkred;
      padding: 13px;
      margin: 20px 0;
    }

    table {
      width: 100%;
      border-collapse: collapse;
    }

    th, td {
      border: 1px solid lightgray;
      border-radius: 4px;
      padding: 6px 10px;
      text-align: left;
      font-size: 14px;
    }

    .badge {
      display: inline-block;
      padding: 6px 10px;
      border: 1px solid #01B757;
      border-radius: 4px;
      color: #01B757;
    }

    pre {
      border: 1px solid lightgray;
      border-radius: 4px;
      padding: 10px;
      font-size: 11px;
      overflow-x: auto;
    }
  </style>
</head>
<body>
  <h1>trackpadd</h1>
  <p><span class="badge">version {{.Version}}</span></p>

  {{if .IsError}}
  <div class="error">{{.Error}}</div>
  {{end}}

  <h2>Devices ({{.DeviceCount}})</h2>
  {{if .Devices}}
  <table>
    <tr><th>Path</th><th>Class</th><th>Family</th><th>Built-in</th><th>Listening</th></tr>
    {{range .Devices}}
    <tr>
      <td>{{.Path}}</td>
      <td>{{.Class}}</td>
      <td>{{.Family}}</td>
      <td>{{if .Builtin}}yes{{else}}no{{end}}</td>
      <td>{{if .Running}}yes{{else}}no{{end}}</td>
    </tr>
    {{end}}
  </table>
  {{else}}
  <p>No multitouch devices found.</p>
  {{end}}

  <h2>Detailed log</h2>
  <form action="/status/log.gz" method="POST">
    {{.CSRFField}}
    <button type="submit">Download detailed log</button>
  </form>

  <h2>Log</h2>
  <pre>{{.Log}}</pre>
</body>
</html>
`

var statusTemplate = template.Must(template.New("status").Parse(templateString))
