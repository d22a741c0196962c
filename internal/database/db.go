package database

import (
	"os"
	"time"

	"github.com/sachindewan/CoilApplication/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the MySQL connection from DB_DSN and syncs the schema.
// The database container may still be warming up, so retry a few times.
func Connect() {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		logrus.Fatal("DB_DSN not found in .env file. Please configure your database.")
	}

	var err error
	for i := 0; i < 5; i++ {
		DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err == nil {
			break
		}
		logrus.WithError(err).Warnf("Failed to connect to database. Retrying in 2 seconds... (%d/5)", i+1)
		time.Sleep(2 * time.Second)
	}

	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database after 5 attempts")
	}

	logrus.Info("Connected to MySQL")

	if err := Migrate(DB); err != nil {
		logrus.WithError(err).Fatal("Failed to sync database schema")
	}

	logrus.Info("Database schema synced")
}

// Migrate syncs the schema. Split out so tests can point it at sqlite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Plant{},
		&models.Party{},
		&models.RawMaterial{},
		&models.RawMaterialQuantity{},
		&models.RawMaterialPurchase{},
		&models.Expense{},
		&models.Payment{},
		&models.Sale{},
		&models.Wastage{},
		&models.Challenge{},
		&models.ChallengesState{},
		&models.Product{},
		&models.ProductImage{},
		&models.Enquiry{},
	)
}
