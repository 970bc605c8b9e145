package utils

import (
	"fmt"
	"time"
)

// Logf writes one timestamped line to Output when Verbose is set.
func Logf(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	fmt.Fprintf(Output, "%s %s\n", time.Now().Format("2006/01/02 15:04:05"), fmt.Sprintf(format, args...))
}
