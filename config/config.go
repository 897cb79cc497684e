package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"akiya_collector/grid"
)

const (
	DataTypeVacancy  = "vacancy"
	DataTypeHouseAge = "house_age"
)

type Config struct {
	Store          StoreConfig
	Scheduler      SchedulerConfig
	Scraper        ScraperConfig
	Archive        ArchiveConfig
	DownloadDir    string
	DatasetsDir    string
	LogLevel       string
	LogFile        string
	PrefectureCode string
	ImportYear     int
	Datasets       map[string]*DatasetConfig
}

type StoreConfig struct {
	Driver      string
	DBPath      string
	DatabaseURL string
}

type SchedulerConfig struct {
	Cron string
}

type ScraperConfig struct {
	Headless        bool
	Resolver        string
	PageTimeout     time.Duration
	DownloadTimeout time.Duration
	DownloadRetries int
	ProxyURL        string
}

type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// DatasetConfig describes one published workbook and how to import it.
type DatasetConfig struct {
	ID               string `yaml:"id"`
	Description      string `yaml:"description"`
	PageURL          string `yaml:"page_url"`
	FileLinkSelector string `yaml:"file_link_selector"`
	WaitSelector     string `yaml:"wait_selector"`
	Filename         string `yaml:"filename"`
	SheetName        string `yaml:"sheet_name"`
	SheetIndex       int    `yaml:"sheet_index"`
	DataType         string `yaml:"data_type"`
	// ValueColumn is the zero-based column holding counts in house_age sheets.
	ValueColumn *int `yaml:"value_column"`
}

func (d *DatasetConfig) Sheet() grid.Sheet {
	return grid.Sheet{Name: d.SheetName, Index: d.SheetIndex}
}

func (d *DatasetConfig) validate() error {
	if d.ID == "" {
		return fmt.Errorf("dataset missing id")
	}
	if d.PageURL == "" || d.FileLinkSelector == "" {
		return fmt.Errorf("dataset %s: page_url and file_link_selector are required", d.ID)
	}
	switch d.DataType {
	case DataTypeVacancy, DataTypeHouseAge:
	case "vacant_houses":
		d.DataType = DataTypeVacancy
	default:
		return fmt.Errorf("dataset %s: unknown data_type %q", d.ID, d.DataType)
	}
	if d.Filename == "" {
		d.Filename = d.ID + ".xlsx"
	}
	return nil
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			DBPath:      getEnv("DB_PATH", "vacant_house.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("COLLECT_CRON"),
		},
		Scraper: ScraperConfig{
			Headless:        getEnvBool("HEADLESS", true),
			Resolver:        strings.ToLower(getEnv("RESOLVER", "browser")),
			PageTimeout:     getEnvDuration("PAGE_TIMEOUT", 60*time.Second),
			DownloadTimeout: getEnvDuration("DOWNLOAD_TIMEOUT", 60*time.Second),
			DownloadRetries: getEnvInt("DOWNLOAD_RETRIES", 3),
			ProxyURL:        os.Getenv("HTTP_PROXY_URL"),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_S3_BUCKET"),
			Region:          getEnv("ARCHIVE_S3_REGION", "ap-northeast-1"),
			Endpoint:        os.Getenv("ARCHIVE_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARCHIVE_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_S3_SECRET_ACCESS_KEY"),
		},
		DownloadDir:    getEnv("DOWNLOAD_DIR", "data"),
		DatasetsDir:    getEnv("DATASETS_DIR", filepath.Join("config", "datasets")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", "collector.log"),
		PrefectureCode: getEnv("PREFECTURE_CODE", "19"),
		ImportYear:     getEnvInt("IMPORT_YEAR", 2023),
		Datasets:       make(map[string]*DatasetConfig),
	}

	if cfg.Store.Driver == "postgres" && cfg.Store.DatabaseURL == "" {
		return nil, fmt.Errorf("STORE_DRIVER=postgres requires DATABASE_URL")
	}
	if len(cfg.PrefectureCode) != 2 {
		return nil, fmt.Errorf("PREFECTURE_CODE must be two digits, got %q", cfg.PrefectureCode)
	}

	if err := cfg.loadDatasetConfigs(); err != nil {
		return nil, err
	}
	if len(cfg.Datasets) == 0 {
		for _, d := range DefaultDatasets() {
			cfg.Datasets[d.ID] = d
		}
	}

	return cfg, nil
}

func (c *Config) loadDatasetConfigs() error {
	entries, err := os.ReadDir(c.DatasetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(c.DatasetsDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var ds DatasetConfig
		if err := yaml.Unmarshal(data, &ds); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := ds.validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		c.Datasets[ds.ID] = &ds
	}

	return nil
}

// DatasetIDs returns the configured dataset ids in a stable order.
func (c *Config) DatasetIDs() []string {
	ids := make([]string, 0, len(c.Datasets))
	for id := range c.Datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultDatasets are the two e-Stat housing survey tables for Yamanashi.
func DefaultDatasets() []*DatasetConfig {
	return []*DatasetConfig{
		{
			ID:               "house_age",
			Description:      "Dwellings by period of construction",
			PageURL:          "https://www.e-stat.go.jp/stat-search/files?page=4&layout=dataset&stat_infid=000040209851",
			FileLinkSelector: `a[href*="file-download"][href*="000040209851"]`,
			WaitSelector:     "body",
			Filename:         "house_age.xlsx",
			DataType:         DataTypeHouseAge,
		},
		{
			ID:               "vacancy",
			Description:      "Vacant dwellings by type",
			PageURL:          "https://www.e-stat.go.jp/stat-search/files?page=4&layout=dataset&stat_infid=000040209842",
			FileLinkSelector: `a[href*="file-download"][href*="000040209842"]`,
			WaitSelector:     "body",
			Filename:         "vacant_houses.xlsx",
			DataType:         DataTypeVacancy,
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
