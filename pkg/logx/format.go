package logx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// consoleFormatter renders human-readable, optionally colored lines.
type consoleFormatter struct {
	config *Config
}

const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorBoldRed = "\033[1;31m"
)

func levelColor(l Level) string {
	switch l {
	case LevelDebug:
		return colorGray
	case LevelInfo:
		return colorCyan
	case LevelWarn:
		return colorYellow
	case LevelError:
		return colorRed
	case LevelFatal:
		return colorBoldRed
	default:
		return colorReset
	}
}

func (f *consoleFormatter) Format(rec *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(rec.Timestamp.Format(f.config.TimeFormat))
	buf.WriteByte(' ')

	if f.config.EnableColors {
		fmt.Fprintf(&buf, "%s%-5s%s", levelColor(rec.Level), rec.Level.String(), colorReset)
	} else {
		fmt.Fprintf(&buf, "%-5s", rec.Level.String())
	}

	buf.WriteByte(' ')
	buf.WriteString(rec.Message)

	if len(rec.Fields) > 0 {
		keys := make([]string, 0, len(rec.Fields))
		for k := range rec.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, " %s=%v", k, rec.Fields[k])
		}
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// jsonFormatter renders one JSON object per line.
type jsonFormatter struct {
	config *Config
}

func (f *jsonFormatter) Format(rec *Record) ([]byte, error) {
	data := make(map[string]interface{}, len(rec.Fields)+3)

	data["level"] = rec.Level.String()
	data["message"] = rec.Message
	data["timestamp"] = rec.Timestamp.Format(f.config.TimeFormat)

	for k, v := range rec.Fields {
		data[k] = v
	}
	if rec.Error != nil {
		data["error"] = rec.Error.Error()
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
