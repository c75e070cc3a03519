package identifier

import "testing"

func TestNameEquality(t *testing.T) {
	cases := []struct {
		name  string
		a, b  Name
		equal bool
	}{
		{"unquoted case-insensitive", NewName("foo", false), NewName("FOO", false), true},
		{"quoted is case-sensitive", NewName("foo", true), NewName("FOO", true), false},
		{"quoted vs unquoted compares raw", NewName("FOO", true), NewName("foo", false), false},
		{"quoted vs unquoted matching raw", NewName("FOO", true), NewName("FOO", false), true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.a.Equal(c.b); got != c.equal {
				t.Errorf("Equal(%+v, %+v) = %v, want %v", c.a, c.b, got, c.equal)
			}
		})
	}
}

func TestNameRenderQuoting(t *testing.T) {
	cases := []struct {
		name Name
		want string
	}{
		{NewName("FOO", false), "FOO"},
		{NewName("My Name", false), `"My Name"`},
		{NewName("foo", true), `"foo"`},
		{NewName(`we"ird`, false), `"we""ird"`},
	}

	for _, c := range cases {
		if got := c.name.Render(); got != c.want {
			t.Errorf("Render(%+v) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestParseNameRoundTrip(t *testing.T) {
	n, err := ParseName(`"My Name"`)
	if err != nil {
		t.Fatalf("ParseName: %v", err)
	}

	if n.Raw != "My Name" || !n.Quoted {
		t.Fatalf("ParseName = %+v, want raw=My Name quoted=true", n)
	}

	if got := n.Render(); got != `"My Name"` {
		t.Fatalf("Render() = %q, want %q", got, `"My Name"`)
	}
}

func TestParseFQNThreePart(t *testing.T) {
	fqn, err := ParseFQN("MYDB.MYSCHEMA.MYTABLE", HintNone)
	if err != nil {
		t.Fatalf("ParseFQN: %v", err)
	}

	if fqn.Database.Raw != "MYDB" || fqn.Schema.Raw != "MYSCHEMA" || fqn.Name.Raw != "MYTABLE" {
		t.Fatalf("ParseFQN = %+v", fqn)
	}

	if got := fqn.Render(); got != "MYDB.MYSCHEMA.MYTABLE" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestParseFQNTwoPartRequiresHint(t *testing.T) {
	if _, err := ParseFQN("A.B", HintNone); err == nil {
		t.Fatal("expected ambiguity error for two-part FQN with no hint")
	}

	fqn, err := ParseFQN("A.B", HintTwoPartIsDatabaseSchema)
	if err != nil {
		t.Fatalf("ParseFQN: %v", err)
	}

	if fqn.Database.Raw != "A" || fqn.Schema.Raw != "B" {
		t.Fatalf("ParseFQN = %+v", fqn)
	}
}

func TestParseFQNWithArgTypes(t *testing.T) {
	fqn, err := ParseFQN("DB.SCHEMA.FN(NUMBER, VARCHAR)", HintNone)
	if err != nil {
		t.Fatalf("ParseFQN: %v", err)
	}

	if len(fqn.ArgTypes) != 2 || fqn.ArgTypes[0] != "NUMBER" || fqn.ArgTypes[1] != "VARCHAR" {
		t.Fatalf("ArgTypes = %v", fqn.ArgTypes)
	}

	if got := fqn.Render(); got != `DB."SCHEMA".FN(NUMBER, VARCHAR)` {
		t.Fatalf("Render() = %q", got)
	}
}

func TestURNRoundTrip(t *testing.T) {
	cases := []string{
		"urn:myorg:ab1234:database/MYDB",
		"urn:myorg:ab1234:schema/MYDB.PUBLIC",
		"urn:myorg:ab1234:table/MYDB.PUBLIC.MYTABLE",
		"urn:myorg:ab1234:grant/MYDB.PUBLIC.MYTABLE?priv=SELECT&to=SOMEROLE",
	}

	for _, s := range cases {
		u, err := ParseURN(s)
		if err != nil {
			t.Fatalf("ParseURN(%q): %v", s, err)
		}

		u2, err := ParseURN(u.Render())
		if err != nil {
			t.Fatalf("ParseURN(render(%q)): %v", s, err)
		}

		if u2.Render() != u.Render() {
			t.Errorf("round trip mismatch: %q != %q", u2.Render(), u.Render())
		}
	}
}

func TestURNCanonicalParamOrdering(t *testing.T) {
	u1, err := ParseURN("urn:o:a:grant/DB.S.T?to=R&priv=SELECT")
	if err != nil {
		t.Fatalf("ParseURN: %v", err)
	}

	u2, err := ParseURN("urn:o:a:grant/DB.S.T?priv=SELECT&to=R")
	if err != nil {
		t.Fatalf("ParseURN: %v", err)
	}

	if u1.Render() != u2.Render() {
		t.Errorf("params should render in canonical order regardless of input order: %q != %q", u1.Render(), u2.Render())
	}
}
