package db

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/config"
	"github.com/techagentng/rentchat/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormDB struct {
	DB *gorm.DB
}

func GetDB(c *config.Config, log zerolog.Logger) (*GormDB, error) {
	gormDB := &GormDB{}
	if err := gormDB.Init(c, log); err != nil {
		return nil, err
	}
	return gormDB, nil
}

func (g *GormDB) Init(c *config.Config, log zerolog.Logger) error {
	db, err := getPostgresDB(c, log)
	if err != nil {
		return err
	}
	g.DB = db

	if err := migrate(g.DB); err != nil {
		return errors.Wrap(err, "unable to run migrations")
	}
	return nil
}

func getPostgresDB(c *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	log.Info().
		Str("host", c.PostgresHost).
		Int("port", c.PostgresPort).
		Str("db", c.PostgresDB).
		Msg("connecting to postgres")
	postgresDSN := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d TimeZone=UTC",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort)

	gormConfig := &gorm.Config{}
	if !c.IsProduction() {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		DSN: postgresDSN,
	}), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	return gormDB, nil
}

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
		&models.PresenceRecord{},
		&models.Reaction{},
		&models.Template{},
		&models.DeviceToken{},
	)
	if err != nil {
		return fmt.Errorf("migrations error: %v", err)
	}
	return nil
}
