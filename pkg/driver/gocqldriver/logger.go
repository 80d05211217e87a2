package gocqldriver

import (
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// gocqlLogger sends gocql's printf-style output to a go-kit logger at
// debug level.
type gocqlLogger struct {
	logger log.Logger
}

func (l gocqlLogger) Print(v ...interface{}) {
	l.log(fmt.Sprint(v...))
}

func (l gocqlLogger) Printf(format string, v ...interface{}) {
	l.log(fmt.Sprintf(format, v...))
}

func (l gocqlLogger) Println(v ...interface{}) {
	l.log(fmt.Sprintln(v...))
}

func (l gocqlLogger) log(msg string) {
	level.Debug(l.logger).Log("component", "gocql", "msg", strings.TrimRight(msg, "\n"))
}
