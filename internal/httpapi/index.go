package httpapi

import (
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clearpix/simple-denoiser/internal/denoise"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Image Denoiser</title>
</head>
<body>
  <h1>Image Denoiser</h1>
  <form action="/jobs" method="POST" enctype="multipart/form-data">
    <p><input type="file" name="image" accept="image/*" required></p>
    <p>
      <label for="strength">Strength (1-10):</label>
      <input type="number" id="strength" name="strength" min="1" max="10" value="5">
    </p>
    <p>
      {{range .Methods}}
      <label><input type="radio" name="method" value="{{.}}" {{if eq . "nlmeans"}}checked{{end}}> {{.}}</label>
      {{end}}
    </p>
    <p><label><input type="checkbox" name="grayscale" value="yes"> Convert to grayscale</label></p>
    <p><button type="submit">Upload &amp; Denoise</button></p>
  </form>
  <p>Submitting returns a job id; poll <code>/jobs/&lt;id&gt;</code> for the result.</p>
</body>
</html>
`))

func (s *Server) index(c echo.Context) error {
	methods := make([]string, 0, len(denoise.Methods()))
	for _, m := range denoise.Methods() {
		methods = append(methods, string(m))
	}
	data := struct{ Methods []string }{Methods: methods}
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return indexTmpl.Execute(c.Response(), data)
}
