package repositories

import (
	"log"

	"github.com/devarsh10/userbase/internal/config"
	"github.com/devarsh10/userbase/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectDatabase opens the process-lifetime gorm handle, runs migrations
// and installs the gorm-backed user store. TranslateError lets the postgres
// driver surface unique-constraint violations as gorm.ErrDuplicatedKey.
func ConnectDatabase() {
	dsn := config.Envs.DB_URL
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	// Run migrations
	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatal("Migration failed:", err)
	}
	Users = &gormUserStore{db: db}
	log.Println("Successfully connected to database")
}
