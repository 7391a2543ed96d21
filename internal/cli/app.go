// Package cli defines the clinicctl command tree.
package cli

import (
	"github.com/urfave/cli/v2"
)

func NewApp() *cli.App {
	app := &cli.App{
		Name:  "clinicctl",
		Usage: "Command-line client for the clinic management backend",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authenticate against the backend and store tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "Account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password (prompted when omitted)",
					},
				},
				Action: loginAction,
			},
			{
				Name:   "logout",
				Usage:  "End the session and clear stored tokens",
				Action: logoutAction,
			},
			{
				Name:   "whoami",
				Usage:  "Show the current session",
				Action: whoamiAction,
			},
			{
				Name:  "patients",
				Usage: "Patient records",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List patients",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "search", Usage: "Filter by name or email"},
							&cli.IntFlag{Name: "page", Value: 1},
						},
						Action: patientsListAction,
					},
					{
						Name:  "create",
						Usage: "Create a patient record",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "first-name", Required: true},
							&cli.StringFlag{Name: "last-name", Required: true},
							&cli.StringFlag{Name: "email"},
							&cli.StringFlag{Name: "phone"},
						},
						Action: patientsCreateAction,
					},
				},
			},
			{
				Name:  "appointments",
				Usage: "Appointment scheduling",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List appointments",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "status", Usage: "scheduled|confirmed|completed|cancelled"},
							&cli.TimestampFlag{Name: "from", Layout: "2006-01-02"},
							&cli.TimestampFlag{Name: "to", Layout: "2006-01-02"},
						},
						Action: appointmentsListAction,
					},
					{
						Name:  "book",
						Usage: "Book an appointment",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "patient", Required: true, Usage: "Patient id"},
							&cli.StringFlag{Name: "practitioner", Required: true, Usage: "Practitioner id"},
							&cli.TimestampFlag{Name: "starts", Layout: "2006-01-02T15:04", Required: true},
							&cli.TimestampFlag{Name: "ends", Layout: "2006-01-02T15:04", Required: true},
							&cli.StringFlag{Name: "reason"},
						},
						Action: appointmentsBookAction,
					},
					{
						Name:      "cancel",
						Usage:     "Cancel an appointment",
						ArgsUsage: "<appointment-id>",
						Action:    appointmentsCancelAction,
					},
				},
			},
			{
				Name:  "templates",
				Usage: "Document templates",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List document templates",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "kind", Usage: "referral|certificate|prescription|invoice"},
						},
						Action: templatesListAction,
					},
				},
			},
		},
	}

	return app
}
