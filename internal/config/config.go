package config

import (
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"httpAddr"`
	MongoURI string `yaml:"mongoUri"`
	MongoDB  string `yaml:"mongoDb"`
	GelfAddr string `yaml:"gelfAddr"`

	JWTSecret string `yaml:"jwtSecret"`

	AdminEmail       string `yaml:"adminEmail"`
	AdminPass        string `yaml:"adminPass"`
	AdminLab         string `yaml:"adminLab"`
	AdminDesignation string `yaml:"adminDesignation"`

	// ApprovalDesignations is the allow-list of designations permitted
	// to approve a routed form.
	ApprovalDesignations []string `yaml:"approvalDesignations"`

	SMTPAddr string `yaml:"smtpAddr"`
	SMTPFrom string `yaml:"smtpFrom"`
	SMTPUser string `yaml:"smtpUser"`
	SMTPPass string `yaml:"smtpPass"`
}

// Load reads the optional YAML file named by LABDESK_CONFIG, then
// applies environment overrides on top.
func Load() *Config {
	cfg := &Config{
		HTTPAddr:             ":8080",
		MongoURI:             "mongodb://127.0.0.1:27017",
		MongoDB:              "labdesk",
		JWTSecret:            "labdesk-dev-secret-change-me",
		AdminEmail:           "admin@labdesk.local",
		AdminPass:            "admin123",
		AdminLab:             "HQ",
		AdminDesignation:     "Director",
		ApprovalDesignations: []string{"Director", "Deputy Director", "Lab Head"},
	}

	if path := os.Getenv("LABDESK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: config file %s unreadable: %v", path, err)
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Printf("Warning: config file %s invalid: %v", path, err)
		}
	}

	applyEnv(&cfg.HTTPAddr, "LABDESK_ADDR")
	applyEnv(&cfg.MongoURI, "LABDESK_MONGO_URI")
	applyEnv(&cfg.MongoDB, "LABDESK_MONGO_DB")
	applyEnv(&cfg.GelfAddr, "LABDESK_GELF_ADDR")
	applyEnv(&cfg.JWTSecret, "LABDESK_JWT_SECRET")
	applyEnv(&cfg.AdminEmail, "LABDESK_ADMIN_EMAIL")
	applyEnv(&cfg.AdminPass, "LABDESK_ADMIN_PASS")
	applyEnv(&cfg.AdminLab, "LABDESK_ADMIN_LAB")
	applyEnv(&cfg.AdminDesignation, "LABDESK_ADMIN_DESIGNATION")
	applyEnv(&cfg.SMTPAddr, "LABDESK_SMTP_ADDR")
	applyEnv(&cfg.SMTPFrom, "LABDESK_SMTP_FROM")
	applyEnv(&cfg.SMTPUser, "LABDESK_SMTP_USER")
	applyEnv(&cfg.SMTPPass, "LABDESK_SMTP_PASS")

	if v := os.Getenv("LABDESK_APPROVAL_DESIGNATIONS"); v != "" {
		parts := strings.Split(v, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		if len(list) > 0 {
			cfg.ApprovalDesignations = list
		}
	}

	return cfg
}

func applyEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
