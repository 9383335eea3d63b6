package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/lockerhq/lockerctl/cmd/cli/internal/commands"
	"github.com/lockerhq/lockerctl/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Login        commands.LoginCmd        `cmd:"" help:"Log in and store session tokens"`
		Logout       commands.LogoutCmd       `cmd:"" help:"Clear the stored session"`
		Register     commands.RegisterCmd     `cmd:"" help:"Create a new account"`
		Whoami       commands.WhoamiCmd       `cmd:"" help:"Show the current identity"`
		Token        commands.TokenCmd        `cmd:"" help:"Show the stored access token's claims"`
		Lockers      commands.LockersCmd      `cmd:"" help:"List lockers"`
		Reservations commands.ReservationsCmd `cmd:"" help:"List your reservations"`
		Reserve      commands.ReserveCmd      `cmd:"" help:"Reserve a locker"`
		Cancel       commands.CancelCmd       `cmd:"" help:"Cancel a reservation"`
		Debug        bool                     `help:"Enable debug mode."`
		Version      kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	log.Logger = logger.Setup(cli.Debug)
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
