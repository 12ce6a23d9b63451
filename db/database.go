package db

import (
	"database/sql"
	"fmt"
	"log"

	"soundscene/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
func InitDB() error {
	if err := createUsersTable(); err != nil {
		return err
	}
	if err := createProjectsTable(); err != nil {
		return err
	}
	if err := createTracksTable(); err != nil {
		return err
	}
	if err := createAnalysisTable(); err != nil {
		return err
	}

	log.Println("Database initialization completed.")
	return nil
}

func createUsersTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

func createProjectsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS projects (
		id VARCHAR(36) PRIMARY KEY,
		user_id INT NOT NULL,
		settings JSON,
		description_mode VARCHAR(16) NOT NULL DEFAULT 'SHARED',
		shared_description TEXT,
		individual_descriptions JSON,
		current_step INT NOT NULL DEFAULT 1,
		max_reached_step INT NOT NULL DEFAULT 1,
		status VARCHAR(16) NOT NULL DEFAULT 'draft',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_user_projects FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create projects table: %w", err)
	}
	return nil
}

func createTracksTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id VARCHAR(36) PRIMARY KEY,
		project_id VARCHAR(36) NOT NULL,
		user_id INT NOT NULL,
		name VARCHAR(255) NOT NULL,
		object_path VARCHAR(767),
		duration DOUBLE NOT NULL DEFAULT 0,
		prompt TEXT,
		genre VARCHAR(100),
		is_generated TINYINT(1) NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL DEFAULT 'processing',
		position INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_project_tracks FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);
	`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create tracks table: %w", err)
	}
	return nil
}

func createAnalysisTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS track_analysis (
		track_id VARCHAR(36) PRIMARY KEY,
		project_id VARCHAR(36) NOT NULL,
		tempo DOUBLE,
		duration DOUBLE,
		spectral JSON,
		segments JSON,
		analyzed_at TIMESTAMP NULL,
		CONSTRAINT fk_track_analysis FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	);
	`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create track_analysis table: %w", err)
	}
	return nil
}
