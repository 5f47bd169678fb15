package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dukerupert/taskhero/internal/client"
	"github.com/dukerupert/taskhero/internal/goal"
	"github.com/dukerupert/taskhero/internal/level"
	"github.com/dukerupert/taskhero/internal/model"
	"github.com/dukerupert/taskhero/internal/websocket"
)

func commands() map[string]command {
	list := []command{
		{name: "login", usage: "-email EMAIL -password PASSWORD", run: cmdLogin},
		{name: "register", usage: "-name NAME -email EMAIL -password PASSWORD", run: cmdRegister},
		{name: "logout", usage: "[-wipe]", run: cmdLogout},
		{name: "whoami", usage: "", auth: true, run: cmdWhoami},
		{name: "goals", usage: "[-status in_progress|completed|completed_late|expired]", auth: true, run: cmdGoals},
		{name: "goal-create", usage: "-title TITLE [-desc TEXT] [-days N]", auth: true, run: cmdGoalCreate},
		{name: "goal-complete", usage: "-id GOAL", auth: true, run: cmdGoalComplete},
		{name: "goal-delete", usage: "-id GOAL", auth: true, run: cmdGoalDelete},
		{name: "tasks", usage: "-goal GOAL", auth: true, run: cmdTasks},
		{name: "task-add", usage: "-goal GOAL -title TITLE [-priority low|medium|high]", auth: true, run: cmdTaskAdd},
		{name: "task-toggle", usage: "-goal GOAL -id TASK", auth: true, run: cmdTaskToggle},
		{name: "shop", usage: "", auth: true, run: cmdShop},
		{name: "buy", usage: "-id AVATAR", auth: true, run: cmdBuy},
		{name: "avatar", usage: "-id AVATAR", auth: true, run: cmdAvatar},
		{name: "badges", usage: "", auth: true, run: cmdBadges},
		{name: "profile", usage: "[-name NAME] [-email EMAIL] [-password CURRENT -new-password NEW]", auth: true, run: cmdProfile},
		{name: "listen", usage: "", auth: true, run: cmdListen},
		{name: "settings", usage: "[KEY [VALUE]]", run: cmdSettings},
	}
	m := make(map[string]command, len(list))
	for _, c := range list {
		m[c.name] = c
	}
	return m
}

func cmdLogin(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	u, err := e.session.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Logged in to %s as %s (level %d)\n", e.api.BaseURL(), u.Name, u.Level)
	return nil
}

func cmdRegister(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (at least 6 characters)")
	fs.Parse(args)

	u, err := e.session.Register(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Welcome aboard, %s!\n", u.Name)
	return nil
}

func cmdLogout(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	wipe := fs.Bool("wipe", false, "also erase everything cached on this device")
	fs.Parse(args)
	if err := e.session.Logout(); err != nil {
		return err
	}
	if *wipe {
		if err := e.kv.Clear(); err != nil {
			return fmt.Errorf("wipe device storage: %w", err)
		}
		fmt.Fprintln(e.out, "Logged out, device storage wiped")
		return nil
	}
	fmt.Fprintln(e.out, "Logged out")
	return nil
}

func cmdWhoami(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	fs.Parse(args)
	u := e.session.Auth.User()
	p := level.ForGoals(u.GoalsOnTime)

	fmt.Fprintf(e.out, "%s <%s> on %s\n", u.Name, u.Email, e.api.BaseURL())
	fmt.Fprintf(e.out, "Level %d  %s  (%d/%d XP)\n", p.Level, progressBar(p.Percent), p.CurrentXP, p.RequiredXP)
	fmt.Fprintf(e.out, "TaskCoins: %s   XP: %s\n", humanize.Comma(int64(u.Coins)), humanize.Comma(int64(u.Points)))
	fmt.Fprintf(e.out, "Goals: %d on time, %d late, %d expired\n", u.GoalsOnTime, u.GoalsLate, u.GoalsExpired)
	if u.AvatarID != nil {
		fmt.Fprintf(e.out, "Avatar: #%d\n", *u.AvatarID)
	}
	return nil
}

func cmdGoals(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	status := fs.String("status", "", "only show goals with this status")
	fs.Parse(args)

	goals := e.session.Goals.List()
	if *status != "" {
		s := goal.Status(*status)
		if !s.Valid() {
			return fmt.Errorf("unknown status %q", *status)
		}
		goals = e.session.Goals.ListByStatus(s)
	}
	if len(goals) == 0 {
		fmt.Fprintln(e.out, "No goals yet")
		return nil
	}

	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tDUE")
	for _, g := range goals {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d%% (%d/%d)\t%s\n",
			g.ID, g.Title, g.Status, g.Progress, g.CompletedTasks, g.TotalTasks, humanize.Time(g.EndDate))
	}
	return w.Flush()
}

func cmdGoalCreate(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	title := fs.String("title", "", "goal title")
	desc := fs.String("desc", "", "goal description")
	days := fs.Int("days", 7, "days until the goal is due")
	fs.Parse(args)

	start := time.Now()
	g, err := e.session.Goals.Create(ctx, client.GoalInput{
		Title:       *title,
		Description: *desc,
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, *days),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Created goal #%d %q, due %s\n", g.ID, g.Title, humanize.Time(g.EndDate))
	return nil
}

func cmdGoalComplete(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "goal id")
	fs.Parse(args)

	g, reward, err := e.session.Goals.Complete(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Goal #%d %s: +%d coins, +%d XP\n", g.ID, g.Status, reward.Coins, reward.XP)
	return nil
}

func cmdGoalDelete(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "goal id")
	fs.Parse(args)

	if err := e.session.Goals.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Deleted goal #%d\n", *id)
	return nil
}

func cmdTasks(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	goalID := fs.Int64("goal", 0, "goal id")
	fs.Parse(args)

	tasks, err := e.session.Tasks.Load(ctx, *goalID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(e.out, "No tasks yet")
		return nil
	}
	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tPRIORITY\tTITLE")
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		fmt.Fprintf(w, "%d\t[%s]\t%s\t%s\n", t.ID, done, t.Priority, t.Title)
	}
	return w.Flush()
}

func cmdTaskAdd(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	goalID := fs.Int64("goal", 0, "goal id")
	title := fs.String("title", "", "task title")
	priority := fs.String("priority", string(model.PriorityMedium), "low, medium or high")
	fs.Parse(args)

	t, err := e.session.Tasks.Create(ctx, *goalID, client.TaskInput{
		Title:    *title,
		Priority: model.Priority(strings.ToLower(*priority)),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Added task #%d %q\n", t.ID, t.Title)
	return nil
}

func cmdTaskToggle(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	goalID := fs.Int64("goal", 0, "goal id")
	id := fs.Int64("id", 0, "task id")
	fs.Parse(args)

	if _, err := e.session.Tasks.Load(ctx, *goalID); err != nil {
		return err
	}
	t, err := e.session.Tasks.Toggle(ctx, *id)
	if err != nil {
		return err
	}
	state := "reopened"
	if t.Completed {
		state = "done"
	}
	fmt.Fprintf(e.out, "Task #%d %s\n", t.ID, state)
	return nil
}

func cmdShop(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	fs.Parse(args)
	avatars := e.session.Shop.Avatars()
	if len(avatars) == 0 {
		fmt.Fprintln(e.out, "The shop is empty")
		return nil
	}
	u := e.session.Auth.User()
	fmt.Fprintf(e.out, "You have %s TaskCoins\n\n", humanize.Comma(int64(u.Coins)))

	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tOWNED")
	for _, a := range avatars {
		owned := ""
		if a.Unlocked {
			owned = "yes"
		}
		if u.AvatarID != nil && *u.AvatarID == a.ID {
			owned = "equipped"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", a.ID, a.Name, humanize.Comma(int64(a.Price)), owned)
	}
	return w.Flush()
}

func cmdBuy(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "avatar id")
	fs.Parse(args)
	return e.session.Shop.Purchase(ctx, *id)
}

func cmdAvatar(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "avatar id")
	fs.Parse(args)
	if err := e.session.Shop.Select(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Avatar #%d equipped\n", *id)
	return nil
}

func cmdBadges(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	fs.Parse(args)
	badges := e.session.Shop.Badges()
	if len(badges) == 0 {
		fmt.Fprintln(e.out, "No badges yet")
		return nil
	}
	for _, b := range badges {
		if b.Unlocked && b.UnlockedAt != nil {
			fmt.Fprintf(e.out, "%s %s (earned %s)\n", b.Icon, b.Name, humanize.Time(*b.UnlockedAt))
		} else if b.Unlocked {
			fmt.Fprintf(e.out, "%s %s\n", b.Icon, b.Name)
		} else {
			fmt.Fprintf(e.out, "   %s (locked) %s\n", b.Name, b.Description)
		}
	}
	return nil
}

func cmdProfile(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	name := fs.String("name", "", "new display name")
	email := fs.String("email", "", "new email")
	current := fs.String("password", "", "current password")
	next := fs.String("new-password", "", "new password")
	fs.Parse(args)

	u := e.session.Auth.User()
	if *name != "" || *email != "" {
		if *name == "" {
			*name = u.Name
		}
		if *email == "" {
			*email = u.Email
		}
		updated, err := e.session.Auth.UpdateProfile(ctx, *name, *email)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Profile: %s <%s>\n", updated.Name, updated.Email)
	}
	if *next != "" {
		if err := e.session.Auth.ChangePassword(ctx, *current, *next); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "Password changed")
	}
	return nil
}

func cmdListen(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	fs.Parse(args)

	events := e.session.Hub.Subscribe()
	defer e.session.Hub.Unsubscribe(events)

	relay := e.session.Relay()
	relay.OnState(func(s websocket.State) {
		fmt.Fprintf(e.out, "-- %s\n", s)
	})
	if err := e.session.StartRelay(ctx); err != nil {
		return err
	}
	done := relayDone(ctx, relay)

	for {
		select {
		case ev := <-events:
			printEvent(e, ev)
		case <-ctx.Done():
			relay.Stop()
			return nil
		case <-done:
			if relay.State() == websocket.StateGaveUp {
				return errors.New("live updates unavailable, gave up reconnecting")
			}
			return nil
		}
	}
}

// relayDone closes when the relay loop exits.
func relayDone(ctx context.Context, relay *websocket.Relay) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		relay.Wait(ctx)
		close(ch)
	}()
	return ch
}

func printEvent(e *env, ev websocket.Event) {
	switch ev.Type {
	case websocket.EventBadgeUnlocked:
		fmt.Fprintf(e.out, "badge unlocked: %s\n", ev.Badge.Name)
	case websocket.EventGoalExpired:
		fmt.Fprintf(e.out, "goal expired: #%d %s\n", ev.Goal.ID, ev.Goal.Title)
	}
	if ev.HasStats() {
		u := e.session.Auth.User()
		fmt.Fprintf(e.out, "stats: level %d, %s XP, %s coins\n",
			u.Level, humanize.Comma(int64(u.Points)), humanize.Comma(int64(u.Coins)))
	}
}

func cmdSettings(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	fs.Parse(args)
	switch fs.NArg() {
	case 0:
		all, err := e.settings.List()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
		for _, st := range all {
			fmt.Fprintf(w, "%s\t%s\t%s\n", st.Key, st.Value, humanize.Time(st.UpdatedAt))
		}
		return w.Flush()
	case 1:
		v, err := e.settings.Get(fs.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, v)
		return nil
	case 2:
		if err := e.settings.Set(fs.Arg(0), fs.Arg(1)); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%s = %s\n", fs.Arg(0), fs.Arg(1))
		return nil
	}
	return errors.New("usage: taskhero settings [KEY [VALUE]]")
}

func progressBar(percent int) string {
	const width = 20
	filled := percent * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
