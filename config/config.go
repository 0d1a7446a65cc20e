// Package config loads the mapview TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Everpoint/sGis-sub002/crs"
	"github.com/Everpoint/sGis-sub002/symbol"
)

var ErrNotFound = errors.New("config file not found")

type Config struct {
	App        App        `mapstructure:"app"`
	Output     Output     `mapstructure:"output"`
	Viewport   Viewport   `mapstructure:"viewport"`
	Compositor Compositor `mapstructure:"compositor"`
	Loader     Loader     `mapstructure:"loader"`
	Tiles      []Tiles    `mapstructure:"tiles" validate:"dive"`
	Images     []Images   `mapstructure:"images" validate:"dive"`
	Features   []Features `mapstructure:"features" validate:"dive"`
	Clusters   []Clusters `mapstructure:"clusters" validate:"dive"`
	Script     Script     `mapstructure:"script"`
	Prefetch   []Region   `mapstructure:"prefetch" validate:"dive"`
	Metrics    Metrics    `mapstructure:"metrics"`
}

type App struct {
	Version string `mapstructure:"version"`
	Title   string `mapstructure:"title"`
}

type Output struct {
	Directory string `mapstructure:"directory" default:"output"`
	LogDir    string `mapstructure:"logDir"`
	Terminal  bool   `mapstructure:"terminal"`
}

type Viewport struct {
	CRS string `mapstructure:"crs" default:"EPSG:3857" validate:"crs"`
	// Center is given in CenterCRS.
	Center        [2]float64 `mapstructure:"center"`
	CenterCRS     string     `mapstructure:"centerCrs" default:"EPSG:4326" validate:"crs"`
	Resolution    float64    `mapstructure:"resolution" default:"611.4962262814100" validate:"gt=0"`
	Width         int        `mapstructure:"width" default:"800" validate:"gt=0"`
	Height        int        `mapstructure:"height" default:"600" validate:"gt=0"`
	MinResolution float64    `mapstructure:"minResolution" validate:"gte=0"`
	MaxResolution float64    `mapstructure:"maxResolution" validate:"omitempty,gtefield=MinResolution"`
}

type Compositor struct {
	Drift      float64       `mapstructure:"drift" default:"2" validate:"gte=1"`
	Margin     float64       `mapstructure:"margin" default:"0.5" validate:"gt=0"`
	MaxPixels  int           `mapstructure:"maxPixels" validate:"gte=0"`
	Background string        `mapstructure:"background" default:"#ffffff" validate:"color"`
	Interval   time.Duration `mapstructure:"interval" default:"40ms" validate:"gt=0"`
}

type Loader struct {
	Workers int `mapstructure:"workers" default:"4" validate:"gt=0"`
	// TimeDelay is slept before each request, in milliseconds.
	TimeDelay int    `mapstructure:"timeDelay" validate:"gte=0"`
	UserAgent string `mapstructure:"userAgent" default:"mapview"`
}

type Tiles struct {
	Name string `mapstructure:"name" validate:"required"`
	// URL has {x}, {y} and {z} placeholders.
	URL        string        `mapstructure:"url" validate:"required"`
	MinZ       int           `mapstructure:"minZ" validate:"gte=0,lte=30"`
	MaxZ       int           `mapstructure:"maxZ" default:"18" validate:"gtefield=MinZ,lte=30"`
	CacheSize  int           `mapstructure:"cacheSize" default:"256" validate:"gt=0"`
	Transition time.Duration `mapstructure:"transition" default:"300ms" validate:"gte=0"`
	Opacity    float64       `mapstructure:"opacity" default:"1" validate:"gte=0,lte=1"`
}

type Images struct {
	Name string `mapstructure:"name" validate:"required"`
	// URL has {minx} {miny} {maxx} {maxy} {width} {height} and {crs} placeholders.
	URL string `mapstructure:"url" validate:"required"`
	// CRS the image is requested in, the map crs when empty.
	CRS     string  `mapstructure:"crs" validate:"omitempty,crs"`
	Opacity float64 `mapstructure:"opacity" default:"1" validate:"gte=0,lte=1"`
}

type Features struct {
	Name    string `mapstructure:"name" validate:"required"`
	GeoJSON string `mapstructure:"geojson" validate:"required"`
	// Label names the property shown as text next to points.
	Label   string         `mapstructure:"label"`
	Point   map[string]any `mapstructure:"point" validate:"symbol"`
	Line    map[string]any `mapstructure:"line" validate:"symbol"`
	Polygon map[string]any `mapstructure:"polygon" validate:"symbol"`
}

type Clusters struct {
	Name     string         `mapstructure:"name" validate:"required"`
	GeoJSON  string         `mapstructure:"geojson" validate:"required"`
	Distance float64        `mapstructure:"distance" default:"44" validate:"gt=0"`
	Symbol   map[string]any `mapstructure:"symbol" validate:"symbol"`
	Point    map[string]any `mapstructure:"point" validate:"symbol"`
}

// Region is a prefetch job: every tile of every tile layer touching the
// regions of a GeoJSON file on zooms Min..Max.
type Region struct {
	GeoJSON string `mapstructure:"geojson" validate:"required"`
	Min     int    `mapstructure:"min" validate:"gte=0"`
	Max     int    `mapstructure:"max" validate:"gtefield=Min"`
}

// Script is a sequence of view changes played by the render command.
type Script struct {
	Steps []Step `mapstructure:"steps" validate:"dive"`
	// Settle keeps ticking after the last step until no load is pending, at most this long.
	Settle time.Duration `mapstructure:"settle" default:"2s" validate:"gte=0"`
}

type Step struct {
	// Pan moves the center by this many pixels.
	Pan [2]float64 `mapstructure:"pan"`
	// Zoom multiplies the resolution about the center.
	Zoom   float64 `mapstructure:"zoom" default:"1" validate:"gt=0"`
	Repeat int     `mapstructure:"repeat" default:"1" validate:"gt=0"`
	// Gesture suspends updates for the repeats of the step.
	Gesture bool `mapstructure:"gesture"`
}

type Metrics struct {
	// Listen serves /metrics when set, e.g. ":9090".
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// Load reads the TOML file at path. Fields left out take their defaults; the
// result is validated.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	v.SetDefault("app.version", "v0.1.0")
	v.SetDefault("app.title", "mapview")
	v.SetDefault("output.terminal", true)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg, including crs ids, colors and symbol descriptions.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("crs", func(fl validator.FieldLevel) bool {
		_, ok := crs.Lookup(fl.Field().String())
		return ok
	})
	_ = validate.RegisterValidation("color", func(fl validator.FieldLevel) bool {
		_, err := symbol.ParseColor(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("symbol", func(fl validator.FieldLevel) bool {
		desc, ok := fl.Field().Interface().(map[string]any)
		if !ok || len(desc) == 0 {
			return true
		}
		_, err := symbol.Decode(desc)
		return err == nil
	})
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
