package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/lanparty/internal/apiclient"
	"github.com/iliyamo/lanparty/internal/config"
	"github.com/iliyamo/lanparty/internal/syncer"
)

func init() {
	rootCmd.AddCommand(kioskCmd)
	kioskCmd.Flags().Uint64P("event", "e", 0, "Event ID (default SYNC_EVENT_ID)")
	kioskCmd.Flags().String("api", "", "API base URL (default API_BASE_URL)")
}

var kioskCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Run the consumption kiosk in the terminal",
	Long: `Run an interactive consumption kiosk against the API.  Purchases show up
immediately and are reconciled with the server shortly after the last
change.  Type "help" for the list of commands.`,
	Args: cobra.NoArgs,
	RunE: runKiosk,
}

func runKiosk(cmd *cobra.Command, args []string) error {
	scfg := config.LoadSyncConfig()
	if id, _ := cmd.Flags().GetUint64("event"); id != 0 {
		scfg.EventID = id
	}
	if api, _ := cmd.Flags().GetString("api"); api != "" {
		scfg.APIBaseURL = api
	}
	if scfg.EventID == 0 {
		return fmt.Errorf("no event selected: pass --event or set SYNC_EVENT_ID")
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(scfg.APIBaseURL, scfg.RequestTimeout)
	s := syncer.New(ctx, client, scfg.EventID, syncer.Options{
		Debounce:     scfg.Debounce,
		BeerMarker:   scfg.BeerMarker,
		FetchTimeout: scfg.RequestTimeout,
		Logger:       logger,
	})
	defer s.Close()

	if _, err := s.Refresh(ctx); err != nil {
		return err
	}
	return kioskLoop(ctx, s, &syncer.Session{}, os.Stdin, cmd.OutOrStdout())
}

const kioskHelp = `commands:
  guests             list guests with their totals
  products           list products
  select GUEST_ID    make GUEST_ID the current guest
  add PRODUCT_ID     record one purchase for the current guest
  remove RECORD_ID   undo a purchase of the current guest
  show               show the current guest's records
  flush              reconcile with the server now
  logout             forget the current guest
  quit`

// kioskLoop reads commands from in until EOF, "quit" or ctx cancellation.
func kioskLoop(ctx context.Context, s *syncer.Syncer, sess *syncer.Session, in io.Reader, out io.Writer) error {
	ev := s.Event()
	fmt.Fprintf(out, "%s: type \"help\" for commands\n", ev.Name)

	sc := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			s.Flush()
			return nil
		}
		if err := kioskCommand(ctx, s, sess, fields, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func kioskCommand(ctx context.Context, s *syncer.Syncer, sess *syncer.Session, fields []string, out io.Writer) error {
	switch fields[0] {
	case "help":
		fmt.Fprintln(out, kioskHelp)

	case "guests":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tITEMS\tBEERS\tTOTAL")
		for _, g := range s.Guests() {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", g.Guest.ID, g.Guest.Name, g.Totals.Items, g.Totals.Beers, g.Totals.Price.StringFixed(2))
		}
		return tw.Flush()

	case "products":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE")
		for _, p := range s.Products() {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2))
		}
		return tw.Flush()

	case "select":
		id, err := argID(fields)
		if err != nil {
			return err
		}
		g, ok := s.Guest(id)
		if !ok {
			return syncer.ErrUnknownGuest
		}
		sess.Select(id)
		fmt.Fprintf(out, "hello %s\n", g.Guest.Name)

	case "logout":
		sess.Clear()

	case "add":
		guestID, err := currentGuest(sess)
		if err != nil {
			return err
		}
		productID, err := argID(fields)
		if err != nil {
			return err
		}
		rec, err := s.AddItem(ctx, guestID, productID)
		if rec.ID == "" {
			return err
		}
		if err != nil {
			fmt.Fprintf(out, "warning: %v (will retry on next sync)\n", err)
		}
		return printGuest(s, guestID, out)

	case "remove":
		guestID, err := currentGuest(sess)
		if err != nil {
			return err
		}
		if len(fields) < 2 {
			return fmt.Errorf("usage: remove RECORD_ID")
		}
		if err := s.RemoveItem(ctx, fields[1]); err != nil {
			return err
		}
		return printGuest(s, guestID, out)

	case "show":
		guestID, err := currentGuest(sess)
		if err != nil {
			return err
		}
		return printGuest(s, guestID, out)

	case "flush":
		if !s.Flush() {
			if _, err := s.Refresh(ctx); err != nil {
				return err
			}
		}
		fmt.Fprintln(out, "synced")

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

func argID(fields []string) (uint64, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("usage: %s ID", fields[0])
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", fields[1])
	}
	return id, nil
}

func currentGuest(sess *syncer.Session) (uint64, error) {
	id, ok := sess.Current()
	if !ok {
		return 0, fmt.Errorf("no guest selected")
	}
	return id, nil
}

func printGuest(s *syncer.Syncer, guestID uint64, out io.Writer) error {
	g, ok := s.Guest(guestID)
	if !ok {
		return syncer.ErrUnknownGuest
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\titems %d\tbeers %d\ttotal %s\n", g.Guest.Name, g.Totals.Items, g.Totals.Beers, g.Totals.Price.StringFixed(2))
	for _, r := range g.Records {
		state := s.SlotState(guestID, r.ProductID)
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", r.ID, r.Name, r.UnitPrice.StringFixed(2), state)
	}
	return tw.Flush()
}
