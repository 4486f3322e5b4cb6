package loader

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"presence/internal/models"
)

type userDocument struct {
	Server struct {
		Protocol string `xml:"protocol"`
		Host     string `xml:"host"`
		Port     string `xml:"port"`
	} `xml:"server"`
	Users []userElement `xml:"users>user"`
}

type userElement struct {
	ID       string `xml:"id,attr"`
	NameAttr string `xml:"name,attr"`
	Name     string `xml:"name"`
	Avatar   string `xml:"avatar"`
}

// XMLLoader reads the user metadata document.
type XMLLoader struct {
	path   string
	logger *zerolog.Logger
}

// NewXMLLoader creates a loader for the user document at path.
func NewXMLLoader(path string, logger *zerolog.Logger) *XMLLoader {
	return &XMLLoader{path: path, logger: logger}
}

// Load parses the user document. Skipped entries are logged as warnings.
func (l *XMLLoader) Load(_ context.Context) (models.UserDirectory, error) {
	f, err := openSource(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir, diags, err := ParseUsers(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}
	reportDiagnostics(l.logger, "xml", l.path, diags)

	if l.logger != nil {
		l.logger.Debug().
			Str("path", l.path).
			Int("users", len(dir)).
			Int("skipped", len(diags)).
			Msg("user directory loaded")
	}
	return dir, nil
}

// ParseUsers parses the user document from r. Entries without a numeric id or
// a name are skipped and returned as diagnostics.
func ParseUsers(r io.Reader) (models.UserDirectory, []Diagnostic, error) {
	var doc userDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	base := avatarBase(doc.Server.Protocol, doc.Server.Host, doc.Server.Port)
	dir := make(models.UserDirectory, len(doc.Users))
	var diags []Diagnostic

	for i, u := range doc.Users {
		raw := fmt.Sprintf("user #%d id=%q", i+1, u.ID)

		id, err := strconv.Atoi(strings.TrimSpace(u.ID))
		if err != nil {
			diags = append(diags, Diagnostic{Reason: "missing or invalid id attribute", Raw: raw})
			continue
		}

		name := strings.TrimSpace(u.Name)
		if name == "" {
			name = strings.TrimSpace(u.NameAttr)
		}
		if name == "" {
			diags = append(diags, Diagnostic{Reason: "missing name", Raw: raw})
			continue
		}

		dir[id] = models.UserProfile{
			UserID: id,
			Name:   name,
			Avatar: avatarURL(base, strings.TrimSpace(u.Avatar)),
		}
	}

	return dir, diags, nil
}

func avatarBase(protocol, host, port string) string {
	protocol = strings.TrimSpace(protocol)
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	if host == "" {
		return ""
	}
	if protocol == "" {
		protocol = "https"
	}
	if port != "" {
		host = host + ":" + port
	}
	return protocol + "://" + host
}

func avatarURL(base, fragment string) string {
	if fragment == "" {
		return ""
	}
	if !strings.HasPrefix(fragment, "/") {
		fragment = "/" + fragment
	}
	return base + fragment
}
