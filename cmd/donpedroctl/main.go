// donpedroctl: herramientas administrativas offline del provider.
// Opera directo contra la configuración y el storage, sin pasar por HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dropDatabas3/donpedro/internal/config"
	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/credentials"
	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/security/password"
	pgstore "github.com/dropDatabas3/donpedro/internal/store/pg"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "donpedroctl",
		Short:         "Administración offline de donpedro",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "ruta del archivo de configuración")

	root.AddCommand(
		checkCmd(&configPath),
		secretCmd(),
		keysCmd(&configPath),
		userCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "donpedroctl:", err)
		os.Exit(1)
	}
}

// checkCmd valida la configuración igual que el arranque del server.
func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Valida la configuración (clients, scopes, resources)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if _, err := configstore.New(cfg); err != nil {
				return err
			}
			fmt.Printf("ok: %d clients, %d scopes, %d resources, %d users\n",
				len(cfg.Clients), len(cfg.Scopes), len(cfg.Resources), len(cfg.Users))
			return nil
		},
	}
}

// secretCmd genera hashes PHC argon2id para secretos de config.
func secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Secretos y hashes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash",
		Short: "Hashea un secreto (lo pide por stdin) como PHC argon2id",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(os.Stderr, "secret: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			phc, err := password.Hash(password.Default, string(raw))
			if err != nil {
				return err
			}
			fmt.Println(phc)
			return nil
		},
	})
	return cmd
}

func openPG(configPath string) (*pgstore.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Driver != "postgres" {
		return nil, fmt.Errorf("este comando requiere storage.driver=postgres")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return pgstore.New(ctx, cfg.Storage.DSN, pgstore.Options{
		MaxConns: cfg.Storage.Postgres.MaxConns,
	})
}

// keysCmd administra las claves de firma.
func keysCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Claves de firma",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Lista las claves verificables (active + retiring)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openPG(*configPath)
			if err != nil {
				return err
			}
			defer pg.Close()
			keys, err := pg.Keys().ListVerifiable(context.Background())
			if err != nil {
				return err
			}
			for _, k := range keys {
				retire := "-"
				if k.RetireAt != nil {
					retire = k.RetireAt.UTC().Format(time.RFC3339)
				}
				fmt.Printf("%s\t%s\t%s\tretire_at=%s\n", k.KID, k.Alg, k.Status, retire)
			}
			return nil
		},
	})

	var overlap time.Duration
	rotate := &cobra.Command{
		Use:   "rotate",
		Short: "Fuerza una rotación de la clave de firma",
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openPG(*configPath)
			if err != nil {
				return err
			}
			defer pg.Close()
			ks := jwt.NewKeystore(pg.Keys())
			if err := ks.EnsureBootstrap(context.Background()); err != nil {
				return err
			}
			rot := jwt.NewRotator(pg.Keys(), ks, 0, overlap)
			if err := rot.Rotate(context.Background()); err != nil {
				return err
			}
			kid, _, err := ks.Active()
			if err != nil {
				return err
			}
			fmt.Println("active kid:", kid)
			return nil
		},
	}
	rotate.Flags().DurationVar(&overlap, "overlap", 48*time.Hour, "ventana de gracia de la clave saliente")
	cmd.AddCommand(rotate)
	return cmd
}

// userCmd administra sujetos en el credential store de PostgreSQL.
func userCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Sujetos del credential store (postgres)",
	}

	var id, username, claimsJSON string
	upsert := &cobra.Command{
		Use:   "upsert",
		Short: "Crea o actualiza un sujeto (password por stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || username == "" {
				return fmt.Errorf("--id and --username are required")
			}
			claims := map[string]string{}
			if claimsJSON != "" {
				if err := json.Unmarshal([]byte(claimsJSON), &claims); err != nil {
					return fmt.Errorf("claims: %w", err)
				}
			}
			fmt.Fprint(os.Stderr, "password: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			phc, err := password.Hash(password.Default, string(raw))
			if err != nil {
				return err
			}

			pg, err := openPG(*configPath)
			if err != nil {
				return err
			}
			defer pg.Close()
			creds := credentials.NewPGStore(pg.Pool())
			if err := creds.EnsureSchema(context.Background()); err != nil {
				return err
			}
			err = creds.UpsertSubject(context.Background(), credentials.Identity{
				ID:       id,
				Username: username,
				Claims:   claims,
			}, phc)
			if err != nil {
				return err
			}
			fmt.Println("ok:", id)
			return nil
		},
	}
	upsert.Flags().StringVar(&id, "id", "", "id estable del sujeto")
	upsert.Flags().StringVar(&username, "username", "", "username de login")
	upsert.Flags().StringVar(&claimsJSON, "claims", "", `claims de identidad como JSON ({"email":"..."})`)
	cmd.AddCommand(upsert)
	return cmd
}
