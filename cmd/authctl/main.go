// Command authctl bootstraps an administrator account. It promotes an
// existing user or creates one, prompting for the password on a TTY.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"

	"github.com/jsvoboda/authd/internal/flagx"
	"github.com/jsvoboda/authd/internal/server/config"
	"github.com/jsvoboda/authd/internal/server/models"
	"github.com/jsvoboda/authd/internal/server/password"
	"github.com/jsvoboda/authd/internal/server/repositories/repomanager"
	"github.com/jsvoboda/authd/internal/server/repositories/users"
	"github.com/jsvoboda/authd/internal/shared"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-n"})

	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	email := fs.String("u", "", "email of the account to promote")
	name := fs.String("n", "Administrator", "name for a newly created account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("email is required (-u)")
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	repo := rm.Users(db)

	user, err := repo.GetByEmail(ctx, *email)
	if err == nil {
		if err := repo.SetAdmin(ctx, user.ID, true); err != nil {
			return err
		}
		fmt.Printf("%s is now an administrator\n", user.Email)
		return nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return err
	}

	fmt.Println("Enter password for the new administrator")
	plain, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(plain)

	hash, err := password.Hash(string(plain))
	if err != nil {
		return err
	}

	created, err := repo.Create(ctx, &models.User{
		Email:        *email,
		Name:         *name,
		PasswordHash: hash,
		IsAdmin:      true,
	})
	if err != nil {
		return err
	}

	fmt.Printf("created administrator %s\n", created.Email)
	return nil
}
