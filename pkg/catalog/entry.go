package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// NotAvailable marks a field whose value is not known yet. It is distinct from "".
const NotAvailable = "N/A"

// listSeparator joins multi-valued text fields (cname, cid, genre, similar names).
const listSeparator = ", "

// Location is a single (provider, folder id) mapping for an entry.
type Location struct {
	Provider string
	ID       string
}

// Entry is one canonical catalog item.
type Entry struct {
	ID           int
	Name         string
	JapaneseName string
	Letter       string
	Locations    []Location

	Poster   string
	Banner   string
	Trailer  string
	Synopsis string
	Genre    string
	Related  Names
	Similar  string

	Type          string
	Status        string
	Airing        bool
	TotalEpisodes Count
	PGRating      string
	Studio        string
	Producers     string

	Rating Rating
	Votes  Count
}

// NewEntry returns an entry with every metadata field set to NotAvailable.
func NewEntry(id int, name string, locations []Location) Entry {
	return Entry{
		ID:           id,
		Name:         name,
		JapaneseName: NotAvailable,
		Letter:       Letter(name),
		Locations:    slices.Clone(locations),
		Poster:       NotAvailable,
		Banner:       NotAvailable,
		Trailer:      NotAvailable,
		Synopsis:     NotAvailable,
		Genre:        NotAvailable,
		Similar:      NotAvailable,
		Type:         NotAvailable,
		Status:       NotAvailable,
		PGRating:     NotAvailable,
		Studio:       NotAvailable,
		Producers:    NotAvailable,
	}
}

// Key returns the identity key used to match the entry across scans.
func (e Entry) Key() string { return IdentityKey(e.Name) }

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	e.Locations = slices.Clone(e.Locations)
	e.Related.Values = slices.Clone(e.Related.Values)
	return e
}

// Equal reports whether both entries hold the same field values.
func (e Entry) Equal(o Entry) bool {
	return e.ID == o.ID &&
		e.Name == o.Name &&
		e.JapaneseName == o.JapaneseName &&
		e.Letter == o.Letter &&
		slices.Equal(e.Locations, o.Locations) &&
		e.Poster == o.Poster &&
		e.Banner == o.Banner &&
		e.Trailer == o.Trailer &&
		e.Synopsis == o.Synopsis &&
		e.Genre == o.Genre &&
		e.Related.Equal(o.Related) &&
		e.Similar == o.Similar &&
		e.Type == o.Type &&
		e.Status == o.Status &&
		e.Airing == o.Airing &&
		e.TotalEpisodes == o.TotalEpisodes &&
		e.PGRating == o.PGRating &&
		e.Studio == o.Studio &&
		e.Producers == o.Producers &&
		e.Rating == o.Rating &&
		e.Votes == o.Votes
}

// HasProvider reports whether the entry has a location on the given provider.
func (e Entry) HasProvider(provider string) bool {
	for _, l := range e.Locations {
		if l.Provider == provider {
			return true
		}
	}
	return false
}

// IsUnset reports whether a text field holds no usable value.
func IsUnset(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == NotAvailable
}

// Rating is a 0-10 score that may be unknown.
type Rating struct {
	Value float64
	Known bool

	// raw keeps an unrecognised value (free text such as "No rating") so it
	// is written back as it was read.
	raw string
}

// KnownRating builds a known rating.
func KnownRating(v float64) Rating { return Rating{Value: v, Known: true} }

func (r Rating) String() string {
	if !r.Known {
		return NotAvailable
	}
	return formatScore(r.Value)
}

func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.Known {
		return unknownJSON(r.raw)
	}
	return []byte(formatScore(r.Value)), nil
}

// formatScore always keeps a fractional part, matching how existing documents
// spell whole scores ("8.0").
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func (r *Rating) UnmarshalJSON(data []byte) error {
	*r = Rating{}
	s, isString, err := scalarText(data)
	if err != nil || (s == "" && !isString) {
		return err
	}
	v, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if perr != nil {
		if isString {
			r.raw, err = rawText(s)
			return err
		}
		return fmt.Errorf("invalid rating %q: %w", s, perr)
	}
	*r = KnownRating(v)
	return nil
}

// Count is a non-negative integer (episodes, votes) that may be unknown.
type Count struct {
	Value int64
	Known bool

	// raw keeps an unrecognised value (free text or a fractional number) so
	// it is written back as it was read.
	raw string
}

// KnownCount builds a known count.
func KnownCount(v int64) Count { return Count{Value: v, Known: true} }

func (c Count) String() string {
	if !c.Known {
		return NotAvailable
	}
	return strconv.FormatInt(c.Value, 10)
}

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return unknownJSON(c.raw)
	}
	return []byte(strconv.FormatInt(c.Value, 10)), nil
}

func (c *Count) UnmarshalJSON(data []byte) error {
	*c = Count{}
	s, isString, err := scalarText(data)
	if err != nil || (s == "" && !isString) {
		return err
	}
	trimmed := strings.TrimSpace(s)
	if v, perr := strconv.ParseInt(trimmed, 10, 64); perr == nil {
		*c = KnownCount(v)
		return nil
	}
	// Whole floats ("1500.0") are counts; fractions are kept verbatim.
	f, ferr := strconv.ParseFloat(trimmed, 64)
	switch {
	case ferr == nil && f == math.Trunc(f) && !math.IsInf(f, 0):
		*c = KnownCount(int64(f))
		return nil
	case isString:
		c.raw, err = rawText(s)
		return err
	case ferr == nil:
		c.raw = s
		return nil
	}
	return fmt.Errorf("invalid count %q: %w", s, ferr)
}

// rawText is the JSON literal for an unrecognised string value. The sentinel
// itself needs no copy.
func rawText(s string) (string, error) {
	if s == NotAvailable {
		return "", nil
	}
	b, err := marshalRaw(s)
	return string(b), err
}

func unknownJSON(raw string) ([]byte, error) {
	if raw != "" {
		return []byte(raw), nil
	}
	return json.Marshal(NotAvailable)
}

// Names is an ordered list of entry names that may be unknown.
type Names struct {
	Values []string
	Known  bool
}

// KnownNames builds a known list; a nil list is stored as empty.
func KnownNames(values []string) Names {
	if values == nil {
		values = []string{}
	}
	return Names{Values: values, Known: true}
}

func (n Names) Equal(o Names) bool {
	return n.Known == o.Known && slices.Equal(n.Values, o.Values)
}

func (n Names) MarshalJSON() ([]byte, error) {
	if !n.Known {
		return json.Marshal(NotAvailable)
	}
	if n.Values == nil {
		return []byte("[]"), nil
	}
	return marshalRaw(n.Values)
}

func (n *Names) UnmarshalJSON(data []byte) error {
	*n = Names{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*n = KnownNames(values)
	return nil
}

// text accepts strings, numbers and null, so legacy documents decode cleanly.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	s, isString, err := scalarText(data)
	if err != nil {
		return err
	}
	if !isString && s == "" {
		s = NotAvailable
	}
	*t = text(s)
	return nil
}

// airing is encoded as the strings "true"/"false"; JSON booleans are accepted.
type airing bool

func (a airing) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatBool(bool(a)))
}

func (a *airing) UnmarshalJSON(data []byte) error {
	s, _, err := scalarText(data)
	if err != nil {
		return err
	}
	*a = airing(strings.EqualFold(strings.TrimSpace(s), "true"))
	return nil
}

// scalarText returns the textual form of a JSON scalar. null yields "".
func scalarText(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return "", false, nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case data[0] == '{' || data[0] == '[':
		return "", false, fmt.Errorf("expected scalar, got %s", data)
	default:
		return string(data), false, nil
	}
}

// wireEntry fixes the document field order.
type wireEntry struct {
	AID           int     `json:"aid"`
	Name          text    `json:"name"`
	JName         text    `json:"jname"`
	Poster        text    `json:"poster"`
	Banner        text    `json:"banner"`
	CName         text    `json:"cname"`
	CID           text    `json:"cid"`
	Let           text    `json:"let"`
	Trailer       text    `json:"trailer"`
	Genre         text    `json:"genre"`
	Type          text    `json:"type"`
	Status        text    `json:"status"`
	Airing        airing  `json:"airing"`
	Studio        text    `json:"studio"`
	Producers     text    `json:"producers"`
	TotalEpisodes Count   `json:"total_episodes"`
	PGRating      text    `json:"pg_rating"`
	SAnime        text    `json:"sanime"`
	IMDBRating    Rating  `json:"imdb_rating"`
	IMDBVotes     Count   `json:"imdb_votes"`
	Synopsis      text    `json:"synopsis"`
	RAnime        Names   `json:"ranime"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	cname, cid := joinLocations(e.Locations)
	w := wireEntry{
		AID:           e.ID,
		Name:          text(e.Name),
		JName:         text(e.JapaneseName),
		Poster:        text(e.Poster),
		Banner:        text(e.Banner),
		CName:         text(cname),
		CID:           text(cid),
		Let:           text(e.Letter),
		Trailer:       text(e.Trailer),
		Genre:         text(e.Genre),
		Type:          text(e.Type),
		Status:        text(e.Status),
		Airing:        airing(e.Airing),
		Studio:        text(e.Studio),
		Producers:     text(e.Producers),
		TotalEpisodes: e.TotalEpisodes,
		PGRating:      text(e.PGRating),
		SAnime:        text(e.Similar),
		IMDBRating:    e.Rating,
		IMDBVotes:     e.Votes,
		Synopsis:      text(e.Synopsis),
		RAnime:        e.Related,
	}
	return marshalRaw(w)
}

// marshalRaw encodes v without HTML escaping.
func marshalRaw(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	w := wireEntry{
		Name: text(NotAvailable), JName: text(NotAvailable), Poster: text(NotAvailable),
		Banner: text(NotAvailable), CName: text(NotAvailable), CID: text(NotAvailable),
		Let: text(NotAvailable), Trailer: text(NotAvailable), Genre: text(NotAvailable),
		Type: text(NotAvailable), Status: text(NotAvailable), Studio: text(NotAvailable),
		Producers: text(NotAvailable), PGRating: text(NotAvailable), SAnime: text(NotAvailable),
		Synopsis: text(NotAvailable),
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Entry{
		ID:            w.AID,
		Name:          string(w.Name),
		JapaneseName:  string(w.JName),
		Letter:        string(w.Let),
		Locations:     splitLocations(string(w.CName), string(w.CID)),
		Poster:        string(w.Poster),
		Banner:        string(w.Banner),
		Trailer:       string(w.Trailer),
		Synopsis:      string(w.Synopsis),
		Genre:         string(w.Genre),
		Related:       w.RAnime,
		Similar:       string(w.SAnime),
		Type:          string(w.Type),
		Status:        string(w.Status),
		Airing:        bool(w.Airing),
		TotalEpisodes: w.TotalEpisodes,
		PGRating:      string(w.PGRating),
		Studio:        string(w.Studio),
		Producers:     string(w.Producers),
		Rating:        w.IMDBRating,
		Votes:         w.IMDBVotes,
	}
	return nil
}

func joinLocations(locs []Location) (string, string) {
	if len(locs) == 0 {
		return NotAvailable, NotAvailable
	}
	names := make([]string, 0, len(locs))
	ids := make([]string, 0, len(locs))
	for _, l := range locs {
		names = append(names, l.Provider)
		ids = append(ids, l.ID)
	}
	return strings.Join(names, listSeparator), strings.Join(ids, listSeparator)
}

func splitLocations(cname, cid string) []Location {
	if IsUnset(cname) || IsUnset(cid) {
		return nil
	}
	names := strings.Split(cname, ",")
	ids := strings.Split(cid, ",")
	var out []Location
	for i := 0; i < len(names) && i < len(ids); i++ {
		l := Location{Provider: strings.TrimSpace(names[i]), ID: strings.TrimSpace(ids[i])}
		if l.Provider == "" || l.ID == "" || slices.Contains(out, l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// SplitList splits a ", "-joined field into its non-empty parts.
func SplitList(s string) []string {
	if IsUnset(s) {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinList is the inverse of SplitList; an empty list yields NotAvailable.
func JoinList(parts []string) string {
	if len(parts) == 0 {
		return NotAvailable
	}
	return strings.Join(parts, listSeparator)
}
