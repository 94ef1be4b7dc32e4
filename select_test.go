package forge

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// Shell has nothing to project of its own.
type Shell struct {
	Secret string `db:"-"`
	Items  []Item `db:"items" fk:"id,shell_id"`
}

const (
	playersSQL = "SELECT json_group_array(json_object('id',(players.id),'team_id',(players.team_id),'name',(players.name),'active',(players.active))) AS players_JSON FROM Player AS players where Team.id = players.team_id"
	coachSQL   = "SELECT json_object('id',(coach.id),'name',(coach.name)) AS coach_JSON FROM Coach AS coach where Team.coach_id = coach.id"
)

func TestSelect_Render(t *testing.T) {
	fx := newFixture(t)

	t.Run("scalar columns", func(t *testing.T) {
		got, err := fx.teams.Select().Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		want := "SELECT json_group_array(json_object('id',(Team.id),'name',(Team.name),'coach_id',(Team.coach_id))) AS Team_JSON FROM Team AS Team"
		if got != want {
			t.Errorf("Render() =\n%s\nwant\n%s", got, want)
		}
	})

	t.Run("where", func(t *testing.T) {
		got, err := fx.teams.Select().Where("Team.id = 1").Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.HasSuffix(got, " FROM Team AS Team where Team.id = 1") {
			t.Errorf("Render() = %s", got)
		}
	})

	t.Run("where condition", func(t *testing.T) {
		got, err := fx.teams.Select().WhereCond(And(Eq("Team.id", 1), Like("Team.name", "R%"))).Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.HasSuffix(got, " where Team.id = 1 AND Team.name LIKE 'R%'") {
			t.Errorf("Render() = %s", got)
		}
	})

	t.Run("invalid where condition", func(t *testing.T) {
		_, err := fx.teams.Select().WhereCond(C("id", "===", 1)).Render()
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("one-to-many include", func(t *testing.T) {
		got, err := fx.teams.Select().Include("players").Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		want := "SELECT json_group_array(json_object('id',(Team.id),'name',(Team.name),'coach_id',(Team.coach_id),'players',(" + playersSQL + "))) AS Team_JSON FROM Team AS Team"
		if got != want {
			t.Errorf("Render() =\n%s\nwant\n%s", got, want)
		}
	})

	t.Run("single-object include", func(t *testing.T) {
		got, err := fx.teams.Select().Include("coach").Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.Contains(got, "'coach',("+coachSQL+")") {
			t.Errorf("Render() = %s", got)
		}
	})

	t.Run("relations follow include order", func(t *testing.T) {
		got, err := fx.teams.Select().Include("players", "coach").Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		p := strings.Index(got, "'players'")
		c := strings.Index(got, "'coach'")
		if p < 0 || c < 0 || p > c {
			t.Errorf("players should precede coach: %s", got)
		}
	})

	t.Run("duplicate include", func(t *testing.T) {
		got, err := fx.teams.Select().Include("players", "players").Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if strings.Count(got, "players_JSON") != 1 {
			t.Errorf("players projected more than once: %s", got)
		}
	})

	t.Run("two-level include", func(t *testing.T) {
		got, err := fx.teams.Select().Include("players", "players.contracts").Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		contracts := "'contracts',(SELECT json_group_array(json_object('id',(contracts.id),'player_id',(contracts.player_id),'terms',(contracts.terms))) AS contracts_JSON FROM Contract AS contracts where players.id = contracts.player_id)"
		want := "SELECT json_group_array(json_object('id',(Team.id),'name',(Team.name),'coach_id',(Team.coach_id)," +
			"'players',(SELECT json_group_array(json_object('id',(players.id),'team_id',(players.team_id),'name',(players.name),'active',(players.active)," + contracts + ")) AS players_JSON FROM Player AS players where Team.id = players.team_id)" +
			")) AS Team_JSON FROM Team AS Team"
		if got != want {
			t.Errorf("Render() =\n%s\nwant\n%s", got, want)
		}
		if strings.Count(got, "contracts_JSON") != 1 {
			t.Errorf("contracts projected more than once: %s", got)
		}
	})

	t.Run("dotted path without its parent relation", func(t *testing.T) {
		got, err := fx.teams.Select().Include("players.contracts").Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if strings.Contains(got, "players") {
			t.Errorf("dotted path must not resolve at the root: %s", got)
		}
	})

	t.Run("foreign key not found", func(t *testing.T) {
		_, err := fx.teams.Select().Include("contracts").Render()
		if !errors.Is(err, ErrForeignKeyNotFound) {
			t.Fatalf("Render() error = %v, want ErrForeignKeyNotFound", err)
		}
		if !strings.Contains(err.Error(), `"contracts"`) {
			t.Errorf("error should name the path: %v", err)
		}
	})

	t.Run("foreign key not found below the root", func(t *testing.T) {
		_, err := fx.teams.Select().Include("players", "players.coach").Render()
		if !errors.Is(err, ErrForeignKeyNotFound) {
			t.Errorf("Render() error = %v, want ErrForeignKeyNotFound", err)
		}
	})

	t.Run("include resolved at render time", func(t *testing.T) {
		sb := fx.teams.Select().Include("stars")
		sb.Relate("stars", Raw("SELECT 1"))
		got, err := sb.Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.Contains(got, "'stars',(SELECT 1)") {
			t.Errorf("Render() = %s", got)
		}
	})

	t.Run("render twice", func(t *testing.T) {
		sb := fx.teams.Select().Include("players", "players.contracts", "coach")
		first := sb.MustRender()
		second := sb.MustRender()
		if first != second {
			t.Errorf("renders differ:\n%s\n%s", first, second)
		}
	})

	t.Run("alias", func(t *testing.T) {
		sb := fx.teams.Select(WithAlias("t")).Include("players")
		if sb.Alias() != "t" {
			t.Errorf("Alias() = %q", sb.Alias())
		}
		got := sb.MustRender()
		if !strings.HasPrefix(got, "SELECT json_group_array(json_object('id',(t.id),") {
			t.Errorf("Render() = %s", got)
		}
		if !strings.HasSuffix(got, ") AS t_JSON FROM Team AS t") {
			t.Errorf("Render() = %s", got)
		}
		if !strings.Contains(got, "where t.id = players.team_id") {
			t.Errorf("child filter should use the alias: %s", got)
		}
	})

	t.Run("single object", func(t *testing.T) {
		got, err := fx.coaches.SelectOne().Where("Coach.id = 3").Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		want := "SELECT json_object('id',(Coach.id),'name',(Coach.name)) AS Coach_JSON FROM Coach AS Coach where Coach.id = 3"
		if got != want {
			t.Errorf("Render() = %s, want %s", got, want)
		}
	})
}

func TestSelect_Columns(t *testing.T) {
	fx := newFixture(t)

	t.Run("add computed column", func(t *testing.T) {
		got := fx.coaches.Select().AddColumn("shout", "upper(Coach.name)").MustRender()
		if !strings.Contains(got, "'name',(Coach.name),'shout',(upper(Coach.name))") {
			t.Errorf("Render() = %s", got)
		}
	})

	t.Run("override column", func(t *testing.T) {
		got := fx.coaches.Select().AddColumn("name", "Coach.nick").MustRender()
		if !strings.Contains(got, "'name',(Coach.nick)") || strings.Contains(got, "(Coach.name)") {
			t.Errorf("Render() = %s", got)
		}
	})

	t.Run("add fragment", func(t *testing.T) {
		count := Raw("SELECT count(*) FROM Player AS p WHERE p.team_id = Team.id")
		got := fx.teams.Select().AddFragment("roster", count).MustRender()
		if !strings.Contains(got, "'roster',(SELECT count(*) FROM Player AS p WHERE p.team_id = Team.id)") {
			t.Errorf("Render() = %s", got)
		}
	})

	t.Run("related select forwards includes", func(t *testing.T) {
		stars := fx.players.Select(WithAlias("stars")).Where("stars.team_id = Team.id AND stars.active = 1")
		got := fx.teams.Select().
			Relate("stars", stars.Fragment()).
			Include("stars", "stars.contracts").
			MustRender()
		if !strings.Contains(got, "AS stars_JSON FROM Player AS stars where stars.team_id = Team.id") {
			t.Errorf("Render() = %s", got)
		}
		if !strings.Contains(got, "where stars.id = contracts.player_id") {
			t.Errorf("contracts should nest under stars: %s", got)
		}
	})
}

func TestSelect_Errors(t *testing.T) {
	t.Run("empty projection", func(t *testing.T) {
		f, _ := New(nil)
		mustRegister[Item](t, f)
		shells := mustRegister[Shell](t, f)

		got, err := shells.Select().Render()
		if !errors.Is(err, ErrEmptyProjection) {
			t.Errorf("Render() error = %v, want ErrEmptyProjection", err)
		}
		if got != "" {
			t.Errorf("partial SQL produced: %q", got)
		}

		if _, err := shells.Select().Include("items").Render(); !errors.Is(err, ErrEmptyProjection) {
			t.Errorf("Render() with relation error = %v, want ErrEmptyProjection", err)
		}
	})

	t.Run("malformed include", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.teams.Select().Include("players.").Render()
		if !errors.Is(err, ErrForeignKeyNotFound) {
			t.Errorf("Render() error = %v, want ErrForeignKeyNotFound", err)
		}
	})

	t.Run("missing primary key", func(t *testing.T) {
		f, _ := New(nil)
		mustRegister[Tag](t, f)
		posts := mustRegister[Post](t, f)

		_, err := posts.Select().Render()
		if !errors.Is(err, ErrMissingPrimaryKey) {
			t.Errorf("Render() error = %v, want ErrMissingPrimaryKey", err)
		}
		if !strings.Contains(err.Error(), "Post") {
			t.Errorf("error should name the owning type: %v", err)
		}
	})

	t.Run("unregistered relation", func(t *testing.T) {
		f, _ := New(nil)
		teams := mustRegister[Team](t, f)

		_, err := teams.Select().Render()
		if !errors.Is(err, ErrUnknownEntity) {
			t.Errorf("Render() error = %v, want ErrUnknownEntity", err)
		}
	})

	t.Run("self reference", func(t *testing.T) {
		f, _ := New(nil)
		nodes := mustRegister[Node](t, f)

		got, err := nodes.Select().Include("parent", "children").Render()
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.Contains(got, "FROM Node AS parent where Node.parent_id = parent.id") {
			t.Errorf("Render() = %s", got)
		}
		if !strings.Contains(got, "FROM Node AS children where Node.id = children.parent_id") {
			t.Errorf("Render() = %s", got)
		}
	})

	t.Run("must render panics", func(t *testing.T) {
		fx := newFixture(t)
		defer func() {
			if recover() == nil {
				t.Error("MustRender() should panic")
			}
		}()
		fx.teams.Select().Include("nope").MustRender()
	})
}

func TestSelect_Postgres(t *testing.T) {
	f, _ := New(nil, WithDialect(Postgres()))
	items := mustRegister[Item](t, f)

	got := items.Select().MustRender()
	want := "SELECT COALESCE(json_agg(json_build_object('id',(Item.id),'name',(Item.name))), '[]'::json) AS Item_JSON FROM Item AS Item"
	if got != want {
		t.Errorf("Render() = %s, want %s", got, want)
	}

	got = items.SelectOne().Where("Item.id = 1").MustRender()
	want = "SELECT json_build_object('id',(Item.id),'name',(Item.name)) AS Item_JSON FROM Item AS Item where Item.id = 1"
	if got != want {
		t.Errorf("Render() = %s, want %s", got, want)
	}
}

func TestSelect_Exec(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes nested text", func(t *testing.T) {
		rec := &recordingExecutor{
			result: `[{"id":1,"name":"Reds","coach_id":3,"players":"[{\"id\":10,\"team_id\":1,\"name\":\"Ana\",\"active\":1}]","coach":"{\"id\":3,\"name\":\"Kim\"}"}]`,
		}
		fx := newFixture(t, WithExecutor(rec))

		teams, err := fx.teams.Select().Include("players", "coach").Exec(ctx)
		if err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		if len(teams) != 1 {
			t.Fatalf("got %d teams, want 1", len(teams))
		}
		team := teams[0]
		if team.Name != "Reds" || len(team.Players) != 1 {
			t.Fatalf("team = %+v", team)
		}
		if !team.Players[0].Active || team.Players[0].Name != "Ana" {
			t.Errorf("player = %+v", team.Players[0])
		}
		if team.Coach == nil || team.Coach.Name != "Kim" {
			t.Errorf("coach = %+v", team.Coach)
		}
		if len(rec.sql) != 1 || !strings.HasPrefix(rec.sql[0], "SELECT json_group_array") {
			t.Errorf("statements = %v", rec.sql)
		}
	})

	t.Run("decodes native nested JSON", func(t *testing.T) {
		rec := &recordingExecutor{result: `[{"id":1,"name":"Reds","players":[{"id":10,"active":0}]}]`}
		fx := newFixture(t, WithExecutor(rec))

		teams, err := fx.teams.Select().Include("players").Exec(ctx)
		if err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		if len(teams[0].Players) != 1 || teams[0].Players[0].Active {
			t.Errorf("players = %+v", teams[0].Players)
		}
	})

	t.Run("on scan", func(t *testing.T) {
		rec := &recordingExecutor{result: `[{"id":1,"name":"a"},{"id":2,"name":"b"}]`}
		f, _ := New(nil, WithExecutor(rec))
		items := mustRegister[Item](t, f)

		var seen []int
		items.OnScan(func(_ context.Context, item *Item) error {
			seen = append(seen, item.ID)
			return nil
		})
		if _, err := items.Select().Exec(ctx); err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		if len(seen) != 2 {
			t.Errorf("OnScan saw %v", seen)
		}

		items.OnScan(func(context.Context, *Item) error { return errors.New("reject") })
		if _, err := items.Select().Exec(ctx); err == nil {
			t.Error("expected OnScan error")
		}
	})

	t.Run("one", func(t *testing.T) {
		rec := &recordingExecutor{}
		f, _ := New(nil, WithExecutor(rec))
		items := mustRegister[Item](t, f)

		rec.result = `[{"id":1,"name":"a"}]`
		item, err := items.Select().One(ctx)
		if err != nil || item.ID != 1 {
			t.Errorf("One() = %+v, %v", item, err)
		}

		rec.result = `[]`
		if _, err := items.Select().One(ctx); !errors.Is(err, ErrNotFound) {
			t.Errorf("One() error = %v, want ErrNotFound", err)
		}

		rec.result = `[{"id":1},{"id":2}]`
		if _, err := items.Select().One(ctx); !errors.Is(err, ErrMultipleRows) {
			t.Errorf("One() error = %v, want ErrMultipleRows", err)
		}
	})

	t.Run("single mode", func(t *testing.T) {
		rec := &recordingExecutor{result: `{"id":1,"name":"a"}`}
		f, _ := New(nil, WithExecutor(rec))
		items := mustRegister[Item](t, f)

		item, err := items.SelectOne().Where("Item.id = 1").One(ctx)
		if err != nil {
			t.Fatalf("One() error = %v", err)
		}
		if *item != (Item{ID: 1, Name: "a"}) {
			t.Errorf("One() = %+v", item)
		}

		rec.result = ""
		if _, err := items.SelectOne().One(ctx); !errors.Is(err, ErrNotFound) {
			t.Errorf("One() error = %v, want ErrNotFound", err)
		}
		got, err := items.SelectOne().Exec(ctx)
		if err != nil || len(got) != 0 {
			t.Errorf("Exec() = %v, %v, want empty", got, err)
		}
	})

	t.Run("decode mismatch", func(t *testing.T) {
		rec := &recordingExecutor{result: `[{"id":"not a number"}]`}
		f, _ := New(nil, WithExecutor(rec))
		items := mustRegister[Item](t, f)

		_, err := items.Select().Exec(ctx)
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("Exec() error = %v, want DecodeError", err)
		}
		if decodeErr.Result != rec.result {
			t.Errorf("Result = %q", decodeErr.Result)
		}
		if strings.Contains(err.Error(), "not a number") {
			t.Errorf("error text leaks the result: %v", err)
		}
	})

	t.Run("render error sends nothing", func(t *testing.T) {
		rec := &recordingExecutor{}
		fx := newFixture(t, WithExecutor(rec))
		if _, err := fx.teams.Select().Include("nope").Exec(ctx); err == nil {
			t.Fatal("expected error")
		}
		if len(rec.sql) != 0 {
			t.Errorf("statements sent: %v", rec.sql)
		}
	})
}
