package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/homelabqr/internal/platform/config"
	"github.com/louisbranch/homelabqr/internal/services/qr/layout"
)

// Storage backends.
const (
	StorageSQLite   = "sqlite"
	StorageDynamoDB = "dynamodb"
)

// legacyPasswordEnv is the secret variable used before the HOMELABQR_ prefix.
const legacyPasswordEnv = "QR_PASSWORD"

// Config holds every runtime setting of the QR service.
type Config struct {
	HTTPAddr string `env:"HOMELABQR_HTTP_ADDR" envDefault:":3000"`

	Storage           string        `env:"HOMELABQR_STORAGE" envDefault:"sqlite"`
	DBPath            string        `env:"HOMELABQR_DB_PATH" envDefault:"data/homelabqr.db"`
	DynamoQRTable     string        `env:"HOMELABQR_DYNAMODB_QR_TABLE" envDefault:"homelabqr-qr-codes"`
	DynamoSheetTable  string        `env:"HOMELABQR_DYNAMODB_SHEET_TABLE" envDefault:"homelabqr-sheets"`
	DynamoEndpoint    string        `env:"HOMELABQR_DYNAMODB_ENDPOINT"`
	Password          string        `env:"HOMELABQR_PASSWORD"`
	URLPrefix         string        `env:"HOMELABQR_URL_PREFIX" envDefault:"http://localhost:3000/"`
	Page              string        `env:"HOMELABQR_PAGE" envDefault:"A4"`
	CellWidthMM       float64       `env:"HOMELABQR_CELL_WIDTH_MM" envDefault:"25"`
	CellHeightMM      float64       `env:"HOMELABQR_CELL_HEIGHT_MM" envDefault:"30"`
	MarginMM          float64       `env:"HOMELABQR_MARGIN_MM" envDefault:"0"`
	GuideSizeMM       float64       `env:"HOMELABQR_GUIDE_SIZE_MM" envDefault:"2"`
	GuideColor        string        `env:"HOMELABQR_GUIDE_COLOR" envDefault:"#AAAAAA"`
	QRPaddingMM       float64       `env:"HOMELABQR_QR_PADDING_MM" envDefault:"3"`
	TextPaddingMM     float64       `env:"HOMELABQR_TEXT_PADDING_MM" envDefault:"1.5"`
	LayoutFile        string        `env:"HOMELABQR_LAYOUT_FILE"`
	GRPCHealthAddr    string        `env:"HOMELABQR_GRPC_HEALTH_ADDR"`
	MaxConnections    int           `env:"HOMELABQR_MAX_CONNECTIONS" envDefault:"256"`
	ReadHeaderTimeout time.Duration `env:"HOMELABQR_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `env:"HOMELABQR_SHUTDOWN_TIMEOUT"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.ApplyLegacyEnv()
	return cfg, nil
}

// ApplyLegacyEnv fills settings that older deployments set without the
// HOMELABQR_ prefix.
func (c *Config) ApplyLegacyEnv() {
	if strings.TrimSpace(c.Password) == "" {
		c.Password = config.FirstEnv(legacyPasswordEnv)
	}
}

// Geometry builds the page geometry from the layout settings, applying
// LayoutFile on top when set.
func (c Config) Geometry() (layout.Geometry, error) {
	page, ok := layout.PageByName(c.Page)
	if !ok {
		if c.LayoutFile == "" {
			return layout.Geometry{}, fmt.Errorf("unknown page %q", c.Page)
		}
		page = layout.Page{Name: c.Page}
	}
	color, err := layout.ParseColor(c.GuideColor)
	if err != nil {
		return layout.Geometry{}, err
	}
	geometry := layout.Geometry{
		Page: page,
		Cell: layout.Cell{
			WidthMM:       c.CellWidthMM,
			HeightMM:      c.CellHeightMM,
			MarginMM:      c.MarginMM,
			GuideSizeMM:   c.GuideSizeMM,
			GuideColor:    color,
			QRPaddingMM:   c.QRPaddingMM,
			TextPaddingMM: c.TextPaddingMM,
		},
	}
	if c.LayoutFile == "" {
		return geometry, geometry.Validate()
	}

	f, err := os.Open(c.LayoutFile)
	if err != nil {
		return layout.Geometry{}, fmt.Errorf("open layout file: %w", err)
	}
	defer f.Close()
	return layout.LoadProfile(f, geometry)
}
