package responder

import (
	"fmt"
	"html"
	"os"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	xerrors "github.com/nodewire/originserver/pkg/errors"
)

// listingEntry is the directory JSON format from spec §6.
type listingEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size string `json:"size"`
	Date string `json:"date"`
}

// ServeDir implements spec §4.F's directory path, choosing JSON or HTML
// representation by acceptsJSON. requestPath is the canonical (trailing
// slash) URL path, used to build entry and parent-directory links.
func ServeDir(fsPath, requestPath string, acceptsJSON bool) (*Response, *xerrors.Error) {
	entries, err := os.ReadDir(fsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.NotFound()
		}
		return nil, xerrors.Forbidden()
	}

	var dirs, files []listingEntry
	for _, e := range entries {
		name := e.Name()
		if name == "." || name == ".." {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		item := listingEntry{
			Name: name,
			Date: info.ModTime().UTC().Format(time.RFC3339),
		}
		if e.IsDir() {
			item.Type = "dir"
			item.Size = "-"
			dirs = append(dirs, item)
		} else {
			item.Type = "file"
			item.Size = humanSize(info.Size())
			files = append(files, item)
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return strings.ToLower(dirs[i].Name) < strings.ToLower(dirs[j].Name) })
	sort.Slice(files, func(i, j int) bool { return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name) })

	listing := append(dirs, files...)

	if acceptsJSON {
		body, err := json.Marshal(listing)
		if err != nil {
			return nil, xerrors.Internal().WithCause(err)
		}
		return &Response{
			Status:      200,
			ContentType: "application/json; charset=utf-8",
			Body:        body,
			Cacheable:   false,
		}, nil
	}

	body := renderDirHTML(requestPath, listing)
	return &Response{
		Status:      200,
		ContentType: "text/html; charset=utf-8",
		Body:        body,
		Cacheable:   false,
	}, nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.1f %s", float64(n)/float64(div), units[exp])
}

func renderDirHTML(requestPath string, listing []listingEntry) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
	b.WriteString("<title>Index of ")
	b.WriteString(html.EscapeString(requestPath))
	b.WriteString("</title><style>body{font-family:sans-serif;margin:2rem}")
	b.WriteString("table{border-collapse:collapse;width:100%}td,th{padding:.3rem .6rem;text-align:left}")
	b.WriteString("tr:nth-child(even){background:#f6f6f6}a{text-decoration:none}</style></head><body>")
	b.WriteString("<h1>Index of ")
	b.WriteString(html.EscapeString(requestPath))
	b.WriteString("</h1><table><tr><th>Name</th><th>Size</th><th>Last modified</th></tr>")

	if requestPath != "/" {
		b.WriteString("<tr><td><a href=\"../\">../</a></td><td>-</td><td>-</td></tr>")
	}

	base := requestPath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	for _, e := range listing {
		href := html.EscapeString(base + e.Name)
		name := html.EscapeString(e.Name)
		if e.Type == "dir" {
			href += "/"
			name += "/"
		}
		fmt.Fprintf(&b, "<tr><td><a href=\"%s\">%s</a></td><td>%s</td><td>%s</td></tr>",
			href, name, html.EscapeString(e.Size), html.EscapeString(e.Date))
	}

	b.WriteString("</table></body></html>")
	return []byte(b.String())
}
