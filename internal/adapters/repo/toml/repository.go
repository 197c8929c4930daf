package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	statesPathKey    = "states.path"
	statesFileMode   = 0o600
	statesDirMode    = 0o700
	statesConfigDir  = ".chimenet"
	statesConfigFile = "states.toml"
	tempFilePattern  = ".states-*.toml.tmp"
)

// StateRepository keeps custom states in a single TOML file. Instances that
// point at the same file share one lock.
type StateRepository struct {
	statesPath string
	mu         *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.CustomStateRepository = (*StateRepository)(nil)

func NewStateRepository(cfg *viper.Viper) (*StateRepository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetDefault(statesPathKey, filepath.Join(homeDir, statesConfigDir, statesConfigFile))

	statesPath := cfg.GetString(statesPathKey)
	if statesPath == "" {
		return nil, errors.New("states path is empty")
	}
	statesPath, err = normalizeStatesPath(statesPath)
	if err != nil {
		return nil, err
	}

	return &StateRepository{statesPath: statesPath, mu: lockForPath(statesPath)}, nil
}

func (r *StateRepository) Path() string {
	return r.statesPath
}

func (r *StateRepository) Save(ctx context.Context, state domain.CustomState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(state)
	updated := false
	for i := range file.States {
		if file.States[i].Name == encoded.Name {
			file.States[i] = encoded
			updated = true
			break
		}
	}

	if !updated {
		file.States = append(file.States, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *StateRepository) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	kept := file.States[:0]
	for _, entry := range file.States {
		if entry.Name != name {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(file.States) {
		return fmt.Errorf("%w: %s", domain.ErrCustomStateNotFound, name)
	}
	file.States = kept

	return r.writeSchema(file)
}

// List returns the states in file order. A missing file is an empty list.
func (r *StateRepository) List(ctx context.Context) ([]domain.CustomState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	states := make([]domain.CustomState, 0, len(file.States))
	for _, entry := range file.States {
		state, err := fromSchema(entry)
		if err != nil {
			return nil, fmt.Errorf("decode state %q: %w", entry.Name, err)
		}
		states = append(states, state)
	}

	return states, nil
}

func (r *StateRepository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.statesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read states file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode states file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeStatesPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve states path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *StateRepository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.statesPath), statesDirMode); err != nil {
		return fmt.Errorf("create states directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode states file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.statesPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp states file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp states file: %w", err)
	}

	if err := tempFile.Chmod(statesFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp states file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp states file: %w", err)
	}

	if err := os.Rename(tempName, r.statesPath); err != nil {
		return fmt.Errorf("replace states file: %w", err)
	}

	cleanup = false

	if err := os.Chmod(r.statesPath, statesFileMode); err != nil {
		return fmt.Errorf("chmod states file: %w", err)
	}

	return nil
}

func toSchema(state domain.CustomState) stateSchema {
	schema := stateSchema{
		Name:         state.Name,
		Description:  state.Description,
		ShouldChime:  state.ShouldChime,
		AutoResponse: string(state.AutoResponse),
		Priority:     state.Priority,
		ActiveHours:  toTimeRangeSchema(state.ActiveHours),
	}
	if state.AutoResponseDelay != nil {
		schema.AutoResponseDelay = state.AutoResponseDelay.String()
	}

	for _, condition := range state.Conditions {
		schema.Conditions = append(schema.Conditions, conditionSchema{
			Kind:      string(condition.Kind),
			Key:       condition.Key,
			Expect:    condition.Expect,
			Threshold: condition.Threshold,
			Value:     condition.Value,
			Range:     toTimeRangeSchema(condition.Range),
		})
	}

	return schema
}

func fromSchema(schema stateSchema) (domain.CustomState, error) {
	state := domain.CustomState{
		Name:         schema.Name,
		Description:  schema.Description,
		ShouldChime:  schema.ShouldChime,
		AutoResponse: domain.ResponseKind(schema.AutoResponse),
		Priority:     schema.Priority,
	}

	if schema.AutoResponseDelay != "" {
		delay, err := time.ParseDuration(schema.AutoResponseDelay)
		if err != nil {
			return domain.CustomState{}, fmt.Errorf("parse auto_response_delay: %w", err)
		}
		state.AutoResponseDelay = &delay
	}

	activeHours, err := fromTimeRangeSchema(schema.ActiveHours)
	if err != nil {
		return domain.CustomState{}, fmt.Errorf("parse active_hours: %w", err)
	}
	state.ActiveHours = activeHours

	for _, entry := range schema.Conditions {
		window, err := fromTimeRangeSchema(entry.Range)
		if err != nil {
			return domain.CustomState{}, fmt.Errorf("parse %s condition range: %w", entry.Kind, err)
		}
		state.Conditions = append(state.Conditions, domain.Condition{
			Kind:      domain.ConditionKind(entry.Kind),
			Key:       entry.Key,
			Expect:    entry.Expect,
			Threshold: entry.Threshold,
			Value:     entry.Value,
			Range:     window,
		})
	}

	if err := state.Validate(); err != nil {
		return domain.CustomState{}, err
	}

	return state, nil
}

func toTimeRangeSchema(window *domain.TimeRange) *timeRangeSchema {
	if window == nil {
		return nil
	}

	days := make([]string, 0, len(window.Days))
	for _, day := range window.Days {
		days = append(days, strings.ToLower(day.String()))
	}

	return &timeRangeSchema{
		Start: fmt.Sprintf("%02d:%02d", window.StartHour, window.StartMinute),
		End:   fmt.Sprintf("%02d:%02d", window.EndHour, window.EndMinute),
		Days:  days,
	}
}

func fromTimeRangeSchema(schema *timeRangeSchema) (*domain.TimeRange, error) {
	if schema == nil {
		return nil, nil
	}

	startHour, startMinute, err := parseClock(schema.Start)
	if err != nil {
		return nil, err
	}
	endHour, endMinute, err := parseClock(schema.End)
	if err != nil {
		return nil, err
	}

	days := make([]time.Weekday, 0, len(schema.Days))
	for _, raw := range schema.Days {
		day, err := ParseWeekday(raw)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}

	return &domain.TimeRange{
		StartHour:   startHour,
		StartMinute: startMinute,
		EndHour:     endHour,
		EndMinute:   endMinute,
		Days:        days,
	}, nil
}

func parseClock(raw string) (int, int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q", raw)
	}

	return parsed.Hour(), parsed.Minute(), nil
}

// ParseWeekday accepts full or three-letter English day names in any case.
func ParseWeekday(raw string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if len(name) >= 3 {
		for day := time.Sunday; day <= time.Saturday; day++ {
			full := strings.ToLower(day.String())
			if name == full || name == full[:3] {
				return day, nil
			}
		}
	}

	return 0, fmt.Errorf("invalid weekday %q", raw)
}
