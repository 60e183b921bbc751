package common

import (
	"encoding/json"
	"fmt"
	"os"
)

type Result struct {
	OK      bool     `json:"ok"`
	Title   string   `json:"title"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// PrintResult writes the outcome of a tool run. In CI mode it emits
// machine-readable JSON on stdout; otherwise a short human summary.
func PrintResult(ci bool, title string, details []string, err error) {
	if ci {
		result := Result{OK: err == nil, Title: title, Details: details}
		if err != nil {
			result.Error = err.Error()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", title, err)
		return
	}
	fmt.Println(title + ": ok")
	for _, d := range details {
		fmt.Println("  " + d)
	}
}
