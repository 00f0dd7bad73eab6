package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/lanparty/internal/config"
	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/repository"
	"github.com/iliyamo/lanparty/internal/utils"
)

func init() {
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	hashPasswordCmd.Flags().Int("cost", 12, "bcrypt cost")
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin EMAIL PASSWORD",
	Short: "Create an organiser account",
	Long: `Create an account with the ADMIN role.  Organisers sign in with it to
manage tips, settlements, hardware reservations and the seat map.`,
	Args: cobra.ExactArgs(2),
	RunE: runCreateAdmin,
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	email := strings.TrimSpace(strings.ToLower(args[0]))
	password := args[1]
	if len(password) < utils.MinPasswordLen {
		return utils.ErrWeakPassword
	}

	cfg := config.Load()
	db, err := openMySQL(context.Background(), cfg, true)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := repository.NewUserRepo(db).Create(ctx, email, password, model.RoleAdmin, cfg.BcryptCost)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", email, id)
	return nil
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password PASSWORD",
	Short: "Print the bcrypt hash of a password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cost, _ := cmd.Flags().GetInt("cost")
		hash, err := utils.HashPassword(args[0], cost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
