// Package options holds the engine's UCI options: typed, range-checked
// values with change callbacks and optional persistence.
package options

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrUnknownOption = errors.New("options: unknown option")
	ErrOutOfRange    = errors.New("options: value out of range")
	ErrInvalidValue  = errors.New("options: invalid value")
)

// Kind is the UCI option type.
type Kind int

const (
	Check Kind = iota
	Spin
	Combo
	Button
	String
)

func (k Kind) String() string {
	return [...]string{"check", "spin", "combo", "button", "string"}[k]
}

// emptyString is how UCI spells an empty string default.
const emptyString = "<empty>"

// Option is one named setting. Its value is kept as text and converted on
// read.
type Option struct {
	Name    string
	Kind    Kind
	Default string
	Min     int
	Max     int
	Vars    []string
	// Persist marks options saved to the Persister when changed.
	Persist bool

	value    string
	onChange []func(*Option) error
}

// Value returns the current value as text.
func (o *Option) Value() string { return o.value }

// Int returns a spin value.
func (o *Option) Int() int {
	n, _ := strconv.Atoi(o.value)
	return n
}

// Bool returns a check value.
func (o *Option) Bool() bool { return o.value == "true" }

// UCI renders the "option name ..." line without a newline.
func (o *Option) UCI() string {
	var b strings.Builder
	fmt.Fprintf(&b, "option name %s type %s", o.Name, o.Kind)
	switch o.Kind {
	case Check:
		fmt.Fprintf(&b, " default %s", o.Default)
	case Spin:
		fmt.Fprintf(&b, " default %s min %d max %d", o.Default, o.Min, o.Max)
	case Combo:
		fmt.Fprintf(&b, " default %s", o.Default)
		for _, v := range o.Vars {
			fmt.Fprintf(&b, " var %s", v)
		}
	case String:
		def := o.Default
		if def == "" {
			def = emptyString
		}
		fmt.Fprintf(&b, " default %s", def)
	}
	return b.String()
}

// normalize validates v for o and returns its canonical form.
func (o *Option) normalize(v string) (string, error) {
	switch o.Kind {
	case Check:
		switch strings.ToLower(v) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		}
		return "", fmt.Errorf("%w: %s expects true or false, got %q", ErrInvalidValue, o.Name, v)
	case Spin:
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("%w: %s expects an integer, got %q", ErrInvalidValue, o.Name, v)
		}
		if n < o.Min || n > o.Max {
			return "", fmt.Errorf("%w: %s must be in %d..%d, got %d", ErrOutOfRange, o.Name, o.Min, o.Max, n)
		}
		return strconv.Itoa(n), nil
	case Combo:
		for _, x := range o.Vars {
			if strings.EqualFold(x, v) {
				return x, nil
			}
		}
		return "", fmt.Errorf("%w: %s expects one of %s, got %q", ErrInvalidValue, o.Name, strings.Join(o.Vars, ", "), v)
	case String:
		if v == emptyString {
			return "", nil
		}
		return v, nil
	}
	return "", nil
}

// Persister saves and restores option values.
type Persister interface {
	SaveOption(name, value string) error
	LoadOptions() (map[string]string, error)
}

// Store is the set of options of one session. Names are case-insensitive.
type Store struct {
	byName  map[string]*Option
	order   []*Option
	persist Persister
	logger  *zap.Logger
}

// New returns an empty store. persist may be nil.
func New(persist Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{byName: make(map[string]*Option), persist: persist, logger: logger}
}

// Add registers o with its default value. It panics on a duplicate name or
// an invalid default.
func (s *Store) Add(o Option) *Option {
	key := strings.ToLower(o.Name)
	if _, dup := s.byName[key]; dup {
		panic("options: duplicate option " + o.Name)
	}
	opt := &o
	if opt.Kind != Button {
		v, err := opt.normalize(opt.Default)
		if err != nil {
			panic(err)
		}
		opt.value = v
	}
	s.byName[key] = opt
	s.order = append(s.order, opt)
	return opt
}

// Lookup finds an option by name.
func (s *Store) Lookup(name string) (*Option, bool) {
	o, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	return o, ok
}

// Get returns the named option and panics if it is not registered. It is for
// names fixed at compile time.
func (s *Store) Get(name string) *Option {
	o, ok := s.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("%v: %s", ErrUnknownOption, name))
	}
	return o
}

// OnChange registers fn to run after the named option changes. Callbacks run
// in registration order; the first error stops the chain and is returned by
// Set.
func (s *Store) OnChange(name string, fn func(*Option) error) {
	o := s.Get(name)
	o.onChange = append(o.onChange, fn)
}

// Set validates and applies a value, runs the callbacks and persists the
// option. Buttons ignore value and only fire their callbacks.
func (s *Store) Set(name, value string) error {
	return s.set(name, value, true)
}

func (s *Store) set(name, value string, persist bool) error {
	o, ok := s.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}
	if o.Kind != Button {
		v, err := o.normalize(strings.TrimSpace(value))
		if err != nil {
			return err
		}
		o.value = v
	}
	for _, fn := range o.onChange {
		if err := fn(o); err != nil {
			return fmt.Errorf("options: applying %s: %w", o.Name, err)
		}
	}
	if persist && o.Persist && s.persist != nil {
		if err := s.persist.SaveOption(o.Name, o.value); err != nil {
			// The new value stays in effect for this session.
			s.logger.Warn("option not persisted", zap.String("option", o.Name), zap.Error(err))
		}
	}
	s.logger.Debug("option set", zap.String("option", o.Name), zap.String("value", o.value))
	return nil
}

// SetDefault replaces an option's default and current value without
// running callbacks or persisting. It is meant for start-up configuration,
// before Restore.
func (s *Store) SetDefault(name, value string) error {
	o, ok := s.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}
	v, err := o.normalize(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	o.Default, o.value = v, v
	return nil
}

// Restore applies persisted values. Unknown or invalid entries are logged
// and skipped.
func (s *Store) Restore() error {
	if s.persist == nil {
		return nil
	}
	saved, err := s.persist.LoadOptions()
	if err != nil {
		return fmt.Errorf("options: restore: %w", err)
	}
	names := make([]string, 0, len(saved))
	for name := range saved {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		o, ok := s.Lookup(name)
		if !ok || !o.Persist {
			s.logger.Debug("ignoring stored option", zap.String("option", name))
			continue
		}
		if err := s.set(name, saved[name], false); err != nil {
			s.logger.Warn("stored option rejected", zap.String("option", name), zap.Error(err))
		}
	}
	return nil
}

// All returns the options in registration order.
func (s *Store) All() []*Option { return slices.Clone(s.order) }

// UCI renders every option line, each followed by a newline.
func (s *Store) UCI() string {
	var b strings.Builder
	for _, o := range s.order {
		b.WriteString(o.UCI())
		b.WriteByte('\n')
	}
	return b.String()
}
