package gelf

import (
	"encoding"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.elastic.co/fastjson"

	"github.com/V4T54L/hekad-gateway/internal/domain"
)

const (
	// Version is the GELF protocol version written into every record.
	Version = "1.0"

	// ShortMessageMaxLength bounds short_message, counted in characters.
	ShortMessageMaxLength = 250

	// DefaultFacility is used when an event carries no source context.
	DefaultFacility = "GELF"

	// SourceContextProperty names the property that selects facility and logger.
	SourceContextProperty = "SourceContext"
)

// Formatter turns log events into GELF records. It is safe for concurrent
// use; all of its state is fixed at construction.
type Formatter struct {
	host           string
	instanceID     string
	deploymentName string
}

// NewFormatter creates a Formatter. host is resolved once by the caller and
// reused for every record.
func NewFormatter(host, instanceID, deploymentName string) *Formatter {
	return &Formatter{
		host:           host,
		instanceID:     instanceID,
		deploymentName: deploymentName,
	}
}

// Host returns the host name written into records.
func (f *Formatter) Host() string {
	return f.host
}

// Encode serializes event as one compact JSON document followed by a newline.
func (f *Formatter) Encode(event domain.LogEvent) ([]byte, error) {
	level, err := SyslogLevel(event.Level)
	if err != nil {
		return nil, err
	}

	facility := DefaultFacility
	if v, ok := event.Properties[SourceContextProperty]; ok {
		facility = stringify(v)
	}

	fields := newFieldSet(len(event.Properties) + 5)
	for _, key := range sortedKeys(event.Properties) {
		fields.add(key, stringify(event.Properties[key]))
	}
	if event.Failure != nil {
		fields.add("ExceptionSource", event.Failure.Source)
		fields.add("ExceptionMessage", event.Failure.Message)
		fields.add("StackTrace", event.Failure.StackTrace)
	}
	fields.add("Instance", f.instanceID)
	fields.add("Deployment", f.deploymentName)

	var w fastjson.Writer
	w.RawString(`{"version":`)
	w.String(Version)
	w.RawString(`,"host":`)
	w.String(f.host)
	w.RawString(`,"timestamp":`)
	w.RawBytes(strconv.AppendFloat(nil, unixSeconds(event.Timestamp), 'f', -1, 64))
	w.RawString(`,"level":`)
	w.Int64(int64(level))
	w.RawString(`,"facility":`)
	w.String(facility)
	w.RawString(`,"logger":`)
	w.String(facility)
	w.RawString(`,"short_message":`)
	w.String(truncate(event.Message, ShortMessageMaxLength))
	w.RawString(`,"full_message":`)
	w.String(event.Message)
	for _, field := range fields.entries {
		w.RawByte(',')
		w.String(field.key)
		w.RawByte(':')
		w.String(field.value)
	}
	w.RawString("}\n")

	return w.Bytes(), nil
}

// Format encodes event and writes the record to out.
func (f *Formatter) Format(event domain.LogEvent, out io.Writer) error {
	record, err := f.Encode(event)
	if err != nil {
		return err
	}
	_, err = out.Write(record)
	return err
}

// SyslogLevel maps a host severity onto the syslog scale used by GELF.
func SyslogLevel(s domain.Severity) (int, error) {
	switch s {
	case domain.SeverityVerbose, domain.SeverityDebug:
		return 7, nil
	case domain.SeverityInformation:
		return 6, nil
	case domain.SeverityWarning:
		return 4, nil
	case domain.SeverityError:
		return 3, nil
	case domain.SeverityFatal:
		return 2, nil
	}
	return 0, fmt.Errorf("%w: %d", domain.ErrUnknownSeverity, int(s))
}

// NormalizeKey applies the additional-field naming rules: a key equal to
// "id" or "_id" in any case becomes "id_", and every key gets a single
// leading "_". The wire format reserves "_id".
func NormalizeKey(key string) string {
	if strings.EqualFold(key, "id") || strings.EqualFold(key, "_id") {
		key = "id_"
	}
	if !strings.HasPrefix(key, "_") {
		key = "_" + key
	}
	return key
}

type field struct {
	key   string
	value string
}

// fieldSet keeps additional fields in first-insertion order; re-adding a
// key overwrites its value in place.
type fieldSet struct {
	index   map[string]int
	entries []field
}

func newFieldSet(size int) *fieldSet {
	return &fieldSet{index: make(map[string]int, size), entries: make([]field, 0, size)}
}

func (s *fieldSet) add(key, value string) {
	key = NormalizeKey(key)
	if i, ok := s.index[key]; ok {
		s.entries[i].value = value
		return
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, field{key: key, value: value})
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func unixSeconds(t time.Time) float64 {
	t = t.UTC()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case encoding.TextMarshaler:
		if text, err := v.MarshalText(); err == nil {
			return string(text)
		}
	}
	return fmt.Sprint(v)
}
