// azaudit audits Azure subscriptions for required tags, end-of-support OS
// images and NSG coverage, and can add missing tags back.
package main

import (
	"os"
	"time"

	"github.com/kjourdan1/azaudit/cmd"
	"github.com/kjourdan1/azaudit/internal/audit"
	"github.com/kjourdan1/azaudit/internal/exitcode"
	"github.com/kjourdan1/azaudit/internal/output"
	_ "github.com/kjourdan1/azaudit/schemas"
)

func main() {
	start := time.Now()
	if err := cmd.Execute(); err != nil {
		code := exitcode.Of(err)
		event := audit.BuildEvent(os.Args, "failure", code, time.Since(start), cmd.RunID())
		_ = audit.Write(event)
		output.PrintError(err)
		os.Exit(code)
	}

	event := audit.BuildEvent(os.Args, "success", exitcode.OK, time.Since(start), cmd.RunID())
	_ = audit.Write(event)
}
