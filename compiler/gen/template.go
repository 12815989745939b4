package gen

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
)

//go:embed template/*.tmpl
var templateFS embed.FS

// templates holds the skeletons of the generated files. Class bodies and
// other code sections are rendered with a printer and placed by the
// skeletons.
var templates = template.Must(template.New("cppgen").ParseFS(templateFS, "template/*.tmpl"))

// fileData is the input of the file skeletons.
type fileData struct {
	Header    string
	Source    string
	Guard     string
	System    []string
	Local     []string
	Namespace string
	// Sections are the code blocks of the file, without trailing newline.
	Sections []string
}

// add appends a non-empty section.
func (d *fileData) add(s string) {
	if s = strings.TrimRight(s, "\n"); s != "" {
		d.Sections = append(d.Sections, s)
	}
}

func execute(name string, data any) ([]byte, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
