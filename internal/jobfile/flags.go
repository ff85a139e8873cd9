package jobfile

import (
	"reflect"
	"strings"

	"github.com/spf13/pflag"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// Flags binds one string flag per BuildConfig setting. Flag names are the
// job file attribute names with dashes, so project_name becomes
// --project-name.
type Flags struct {
	fs     *pflag.FlagSet
	values map[int]*string
}

// BindFlags registers the build setting flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs, values: make(map[int]*string)}

	t := reflect.TypeOf(models.BuildConfig{})
	for i := 0; i < t.NumField(); i++ {
		name, ok := attributeName(t.Field(i))
		if !ok {
			continue
		}
		f.values[i] = fs.String(FlagName(name), "", "job setting "+name)
	}
	return f
}

// FlagName returns the flag name of a job file attribute.
func FlagName(attribute string) string {
	return strings.ReplaceAll(attribute, "_", "-")
}

// Config returns the settings whose flags were set on the command line.
// Flags explicitly set to "" are kept so they can blank a job file value.
func (f *Flags) Config() (cfg models.BuildConfig, set map[string]bool) {
	set = make(map[string]bool)
	v := reflect.ValueOf(&cfg).Elem()
	t := v.Type()
	for i, p := range f.values {
		name, _ := attributeName(t.Field(i))
		if !f.fs.Changed(FlagName(name)) {
			continue
		}
		v.Field(i).SetString(*p)
		set[name] = true
	}
	return cfg, set
}

// Overlay applies the command line settings on top of base.
func (f *Flags) Overlay(base models.BuildConfig) models.BuildConfig {
	flags, set := f.Config()
	out := base
	dst := reflect.ValueOf(&out).Elem()
	src := reflect.ValueOf(flags)
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		name, ok := attributeName(t.Field(i))
		if ok && set[name] {
			dst.Field(i).SetString(src.Field(i).String())
		}
	}
	return out
}

func attributeName(f reflect.StructField) (string, bool) {
	if f.Type.Kind() != reflect.String {
		return "", false
	}
	tag := f.Tag.Get("hcl")
	name, _, _ := strings.Cut(tag, ",")
	return name, name != ""
}
