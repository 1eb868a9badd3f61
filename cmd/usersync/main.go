// usersync imports user accounts from the legacy postgres database into
// the Firestore directory. Existing directory entries are merged, not
// overwritten, so profile edits made in the app survive a re-run.
//
//	go run cmd/usersync/main.go -dsn "user=vchat dbname=vchat sslmode=disable"
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/klipach/vchat/logger"
	"github.com/klipach/vchat/store"
	"github.com/klipach/vchat/user"
)

const (
	dbDriver = "postgres"
	logID    = "usersync"

	accountQuery = `
		SELECT id, name, email, avatar_url, status, created_at
		FROM account
		ORDER BY created_at`
)

type account struct {
	ID        string         `db:"id"`
	Name      sql.NullString `db:"name"`
	Email     sql.NullString `db:"email"`
	AvatarURL sql.NullString `db:"avatar_url"`
	Status    sql.NullString `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
}

func main() {
	dsnPtr := flag.String("dsn", "", "postgres connection string")
	dryRunPtr := flag.Bool("dry-run", false, "list accounts without writing to Firestore")
	flag.Parse()

	if *dsnPtr == "" {
		log.Fatalf("Please provide a postgres DSN using the -dsn flag")
	}

	ctx := context.Background()
	lg := logger.New(ctx, logID)

	db, err := sqlx.ConnectContext(ctx, dbDriver, *dsnPtr)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	var accounts []account
	if err := db.SelectContext(ctx, &accounts, accountQuery); err != nil {
		log.Fatalf("failed to load accounts: %v", err)
	}
	lg.Printf("loaded %d accounts from postgres", len(accounts))

	if *dryRunPtr {
		for _, a := range accounts {
			lg.Printf("would sync %s (%s)", a.ID, a.Name.String)
		}
		return
	}

	gw, err := store.NewFirestore(ctx)
	if err != nil {
		log.Fatalf("failed to connect to firestore: %v", err)
	}
	defer gw.Close()

	synced := 0
	for _, a := range accounts {
		name := a.Name.String
		avatar := a.AvatarURL.String
		if avatar == "" && name != "" {
			avatar = user.AvatarURL(name)
		}
		fields := map[string]any{
			"name":      name,
			"email":     a.Email.String,
			"avatar":    avatar,
			"status":    a.Status.String,
			"createdAt": a.CreatedAt,
		}
		if err := gw.Set(ctx, user.Collection, a.ID, fields, true); err != nil {
			lg.Printf("failed to sync %s: %v", a.ID, err)
			continue
		}
		synced++
	}
	lg.Printf("synced %d/%d accounts", synced, len(accounts))
}
