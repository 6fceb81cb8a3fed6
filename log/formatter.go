package log

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const (
	timeFormat = "2006-01-02 15:04:05.000"
	successKey = "__success"
)

var levelColors = map[string]*color.Color{
	"DEBUG":   color.New(color.FgHiBlack),
	"INFO":    color.New(color.Bold),
	"SUCCESS": color.New(color.FgGreen, color.Bold),
	"WARNING": color.New(color.FgYellow, color.Bold),
	"ERROR":   color.New(color.FgRed, color.Bold),
	"FATAL":   color.New(color.FgRed, color.Bold),
	"PANIC":   color.New(color.FgRed, color.Bold),
}

var timeColor = color.New(color.FgGreen)

// Formatter renders entries as
//
//	2006-01-02 15:04:05.000 | LEVEL   | message key=value ...
type Formatter struct {
	Colors bool
}

func (f *Formatter) Format(e *logrus.Entry) ([]byte, error) {
	level := severity(e)

	var b bytes.Buffer
	ts := e.Time.Format(timeFormat)
	label := fmt.Sprintf("%-7s", level)
	msg := e.Message
	if f.Colors {
		ts = timeColor.Sprint(ts)
		if c, ok := levelColors[level]; ok {
			label = c.Sprint(label)
			msg = c.Sprint(msg)
		}
	}
	b.WriteString(ts)
	b.WriteString(" | ")
	b.WriteString(label)
	b.WriteString(" | ")
	b.WriteString(msg)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k == successKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func severity(e *logrus.Entry) string {
	if _, ok := e.Data[successKey]; ok {
		return "SUCCESS"
	}
	return strings.ToUpper(e.Level.String())
}
