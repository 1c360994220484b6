package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is one line of the local audit trail, written for every CLI
// invocation.
type Event struct {
	Timestamp     string            `json:"timestamp"`
	Operation     string            `json:"operation"`
	Tenant        string            `json:"tenant,omitempty"`
	Args          []string          `json:"args"`
	Result        string            `json:"result"`
	ExitCode      int               `json:"exitCode"`
	DurationMs    int64             `json:"durationMs"`
	CorrelationID string            `json:"correlationId"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// trailHome overrides the home directory in tests.
var trailHome = os.UserHomeDir

// BuildEvent assembles an Event from the process arguments. runID, when
// non-empty, becomes the correlation id so the trail links to the report.
func BuildEvent(args []string, result string, exitCode int, duration time.Duration, runID string) Event {
	op, tenant, configPath := inferFromArgs(args)
	meta := map[string]string{}
	if configPath != "" {
		meta["config"] = configPath
	}
	if len(meta) == 0 {
		meta = nil
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return Event{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Operation:     op,
		Tenant:        tenant,
		Args:          args,
		Result:        result,
		ExitCode:      exitCode,
		DurationMs:    duration.Milliseconds(),
		CorrelationID: runID,
		Metadata:      meta,
	}
}

// Write appends the event to ~/.azaudit/audit.log.
func Write(event Event) error {
	path, err := userAuditPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// ReadUserAudit returns every event in the trail. Malformed lines are skipped.
func ReadUserAudit() ([]Event, error) {
	path, err := userAuditPath()
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var out []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err == nil {
			out = append(out, event)
		}
	}
	return out, scanner.Err()
}

// MetadataValue returns a metadata entry or "".
func (e Event) MetadataValue(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

func userAuditPath() (string, error) {
	home, err := trailHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".azaudit", "audit.log"), nil
}

func inferFromArgs(args []string) (operation, tenant, configPath string) {
	operation = "root"
	for i := 1; i < len(args); i++ {
		if args[i] == "--config" || args[i] == "--tenant" {
			i++
			continue
		}
		if strings.HasPrefix(args[i], "-") {
			continue
		}
		operation = args[i]
		break
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if k, v, ok := strings.Cut(arg, "="); ok {
			switch k {
			case "--tenant":
				tenant = v
			case "--config":
				configPath = v
			}
			continue
		}
		if i+1 < len(args) {
			switch arg {
			case "--tenant":
				tenant = args[i+1]
			case "--config":
				configPath = args[i+1]
			}
		}
	}
	return
}
