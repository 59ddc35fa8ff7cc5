package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/iliyamo/hostel-booking/internal/config"
	"github.com/iliyamo/hostel-booking/internal/database"
	"github.com/iliyamo/hostel-booking/internal/logger"
	"github.com/iliyamo/hostel-booking/internal/repository"
	"github.com/iliyamo/hostel-booking/internal/utils"
)

// add_admin creates an administrator account.  Admins cannot self-register
// through the API.
//
//	go run ./cmd/add_admin -email warden@example.com -password 's3cretpass' -first Jane -last Doe
func main() {
	email := flag.String("email", "", "admin email (required)")
	password := flag.String("password", "", "admin password, at least 8 characters (required)")
	first := flag.String("first", "Admin", "first name")
	last := flag.String("last", "", "last name")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := utils.CheckPassword(*password); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db, log); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	users := repository.NewUserRepo(sqlx.NewDb(db, "mysql"))
	id, err := users.CreateAdmin(ctx, *email, *password, *first, *last, cfg.BcryptCost)
	if err != nil {
		log.Fatal("create admin failed", zap.String("email", *email), zap.Error(err))
	}
	fmt.Printf("Admin created successfully: id=%d %s %s (%s)\n", id, *first, *last, *email)
}
