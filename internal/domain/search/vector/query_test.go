package vector

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
)

func floatsEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParse_VectorWithK(t *testing.T) {
	q, err := Parse("vec:([0.34, 0.66, 0.12, 0.68], k: 10)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.FieldName() != "vec" {
		t.Errorf("FieldName() = %q, want vec", q.FieldName())
	}
	want := []float32{0.34, 0.66, 0.12, 0.68}
	if !floatsEqual(q.Vector(), want) {
		t.Errorf("Vector() = %v, want %v", q.Vector(), want)
	}
	if k, ok := q.K(); !ok || k != 10 {
		t.Errorf("K() = (%d, %v), want (10, true)", k, ok)
	}
	if id, ok := q.ID(); ok {
		t.Errorf("ID() = %q, want unset", id)
	}
	if n, ok := q.FlatSearchCutoff(); ok {
		t.Errorf("FlatSearchCutoff() = %d, want unset", n)
	}
	if len(q.Params()) != 0 {
		t.Errorf("Params() = %v, want empty", q.Params())
	}
}

func TestParse_FlatSearchCutoff(t *testing.T) {
	q, err := Parse("vec:([0.34, 0.66, 0.12, 0.68], k: 10, flat_search_cutoff: 20)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k, ok := q.K(); !ok || k != 10 {
		t.Errorf("K() = (%d, %v), want (10, true)", k, ok)
	}
	if n, ok := q.FlatSearchCutoff(); !ok || n != 20 {
		t.Errorf("FlatSearchCutoff() = (%d, %v), want (20, true)", n, ok)
	}
	if _, ok := q.ID(); ok {
		t.Error("ID() set, want unset")
	}
}

func TestParse_DocumentID(t *testing.T) {
	q, err := Parse("vec:([], id: abcd)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Vector()) != 0 {
		t.Errorf("Vector() = %v, want empty", q.Vector())
	}
	if id, ok := q.ID(); !ok || id != "abcd" {
		t.Errorf("ID() = (%q, %v), want (abcd, true)", id, ok)
	}
}

func TestParse_ExtraParams(t *testing.T) {
	q, err := Parse(" embedding : ( [1.5] , distance_threshold : 0.3 , ef:64 ) ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.FieldName() != "embedding" {
		t.Errorf("FieldName() = %q, want embedding", q.FieldName())
	}
	p := q.Params()
	if p["distance_threshold"] != "0.3" || p["ef"] != "64" || len(p) != 2 {
		t.Errorf("Params() = %v", p)
	}
}

func TestParse_FieldNameWithColon(t *testing.T) {
	q, err := Parse("a:b:([1])")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.FieldName() != "a:b" {
		t.Errorf("FieldName() = %q, want a:b", q.FieldName())
	}
	if !floatsEqual(q.Vector(), []float32{1}) {
		t.Errorf("Vector() = %v, want [1]", q.Vector())
	}

	q, err = Parse("ns:emb : ( [0.5], k:3 )")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.FieldName() != "ns:emb" {
		t.Errorf("FieldName() = %q, want ns:emb", q.FieldName())
	}
}

func TestParse_ZeroAndSubnormalElements(t *testing.T) {
	q, err := Parse("v:([0, -0.0, 0e10, 1e-45])")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := q.Vector()
	if got[0] != 0 || got[1] != 0 || got[2] != 0 || got[3] == 0 {
		t.Errorf("Vector() = %v, want three zeros and a non-zero subnormal", got)
	}
}

func TestExtras_KeepsOrder(t *testing.T) {
	q, err := Parse("v:([1], ef:64, alpha:0.8, k:3)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := q.Extras()
	want := []Param{{Key: "ef", Value: "64"}, {Key: "alpha", Value: "0.8"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Extras() = %v, want %v", got, want)
	}
	got[0].Value = "1"
	if q.Extras()[0].Value != "64" {
		t.Error("Extras() exposes internal storage")
	}
}

func TestParse_PermissiveK(t *testing.T) {
	for _, in := range []string{"v:([1], k:0)", "v:([1], k:-5)"} {
		if _, err := Parse(in); err != nil {
			t.Errorf("Parse(%q) error = %v, want nil", in, err)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"both vector and id", "vec:([1.0, 2.0], id: abcd)", ErrConflictingTarget},
		{"neither vector nor id", "vec:([])", ErrConflictingTarget},
		{"bad float", "vec:([0.1, notanumber])", ErrInvalidNumber},
		{"empty element", "vec:([0.1,,0.2])", ErrInvalidNumber},
		{"nan element", "vec:([NaN])", ErrInvalidNumber},
		{"inf element", "vec:([Inf])", ErrInvalidNumber},
		{"hex element", "vec:([0x1p-2])", ErrInvalidNumber},
		{"underscore element", "vec:([1_000])", ErrInvalidNumber},
		{"underflow element", "vec:([1e-50])", ErrInvalidNumber},
		{"overflow element", "vec:([1e39])", ErrInvalidNumber},
		{"bad k", "vec:([0.1], k: ten)", ErrInvalidNumber},
		{"float k", "vec:([0.1], k: 1.5)", ErrInvalidNumber},
		{"bad cutoff", "vec:([0.1], flat_search_cutoff: x)", ErrInvalidNumber},
		{"no colon", "vec([0.1])", ErrMalformed},
		{"no parens", "vec:[0.1]", ErrMalformed},
		{"colon name without parens", "a:b:[0.1]", ErrMalformed},
		{"paren in name", "a(b:([0.1])", ErrMalformed},
		{"unclosed paren", "vec:([0.1]", ErrMalformed},
		{"vector not first", "vec:(k:10, [0.1])", ErrMalformed},
		{"unbracketed vector", "vec:(0.1, 0.2)", ErrMalformed},
		{"unterminated vector", "vec:([0.1, 0.2)", ErrMalformed},
		{"junk after vector", "vec:([0.1] k:1)", ErrMalformed},
		{"empty name", ":([0.1])", ErrMissingFieldName},
		{"blank name", "   :([0.1])", ErrMissingFieldName},
		{"param without colon", "vec:([0.1], k)", ErrMalformedParam},
		{"param with two colons", "vec:([0.1], id:a:b)", ErrMalformedParam},
		{"trailing comma", "vec:([0.1], )", ErrMalformedParam},
		{"empty value", "vec:([], id:)", ErrMalformedParam},
		{"duplicate key", "vec:([0.1], k:1, k:2)", ErrMalformedParam},
		{"empty input", "", ErrMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.in)
			if err == nil {
				t.Fatalf("Parse(%q) expected error", tc.in)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Parse(%q) error = %v, want %v", tc.in, err, tc.want)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		field string
		vec   []float32
		opts  []Option
		want  error
	}{
		{"both", "vec", []float32{1}, []Option{WithID("doc")}, ErrConflictingTarget},
		{"neither", "vec", nil, nil, ErrConflictingTarget},
		{"empty vector no id", "vec", []float32{}, []Option{WithK(3)}, ErrConflictingTarget},
		{"blank field", "  ", []float32{1}, nil, ErrMissingFieldName},
		{"field with paren", "a(b", []float32{1}, nil, ErrMalformed},
		{"nan", "vec", []float32{float32(math.NaN())}, nil, ErrInvalidNumber},
		{"inf", "vec", []float32{float32(math.Inf(1))}, nil, ErrInvalidNumber},
		{"empty id", "vec", nil, []Option{WithID("")}, ErrMalformedParam},
		{"id with comma", "vec", nil, []Option{WithID("a,b")}, ErrMalformedParam},
		{"reserved extra", "vec", []float32{1}, []Option{WithParam("k", "3")}, ErrMalformedParam},
		{"duplicate extra", "vec", []float32{1}, []Option{WithParam("ef", "1"), WithParam("ef", "2")}, ErrMalformedParam},
		{"extra with colon", "vec", []float32{1}, []Option{WithParam("a", "b:c")}, ErrMalformedParam},
		{"padded extra", "vec", []float32{1}, []Option{WithParam(" a", "b")}, ErrMalformedParam},
		{"extra key with paren", "vec", []float32{1}, []Option{WithParam("a(", "b")}, ErrMalformedParam},
		{"extra value with paren", "vec", []float32{1}, []Option{WithParam("a", "b)")}, ErrMalformedParam},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.field, tc.vec, tc.opts...)
			if !errors.Is(err, tc.want) {
				t.Errorf("New() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNew_CopiesVector(t *testing.T) {
	vec := []float32{1, 2, 3}
	q, err := New("vec", vec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vec[0] = 42
	if q.Vector()[0] != 1 {
		t.Error("query shares backing array with caller's slice")
	}
	got := q.Vector()
	got[1] = 42
	if q.Vector()[1] != 2 {
		t.Error("Vector() exposes internal storage")
	}
}

func TestString_Canonical(t *testing.T) {
	q, err := New("vec", []float32{0.34, 0.66},
		WithParam("distance_threshold", "0.3"),
		WithFlatSearchCutoff(20),
		WithK(10),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "vec:([0.34, 0.66], k:10, flat_search_cutoff:20, distance_threshold:0.3)"
	if got := q.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestString_EmptyVectorRendersBrackets(t *testing.T) {
	q, err := New("vec", nil, WithID("abcd"), WithK(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := q.String()
	if got != "vec:([], id:abcd, k:5)" {
		t.Errorf("String() = %q", got)
	}
	if !strings.Contains(got, "[]") {
		t.Errorf("String() = %q, want it to contain []", got)
	}
}

func TestRoundTrip_Table(t *testing.T) {
	build := func(field string, vec []float32, opts ...Option) Query {
		t.Helper()
		q, err := New(field, vec, opts...)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		return q
	}
	cases := []Query{
		build("vec", []float32{0.34, 0.66, 0.12, 0.68}, WithK(10)),
		build("vec", []float32{1e-7, -3.25, 1e+21}),
		build("embedding", nil, WithID("doc-42"), WithK(0), WithFlatSearchCutoff(-1)),
		build("e", []float32{0.5}, WithParam("alpha", "0.8"), WithParam("ef", "100")),
		build("a:b", []float32{1}),
		build("a:", nil, WithID("doc"), WithK(2)),
	}
	for _, q := range cases {
		text := q.String()
		parsed, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", text, err)
		}
		if !parsed.Equal(q) {
			t.Errorf("Parse(%q) = %v, want %v", text, parsed, q)
		}
		if again := parsed.String(); again != text {
			t.Errorf("re-format = %q, want fixed point %q", again, text)
		}
	}
}

func randomQuery(r *rand.Rand) (Query, error) {
	var opts []Option
	var vec []float32
	if r.IntN(4) == 0 {
		opts = append(opts, WithID("doc"+strconv.Itoa(r.IntN(1000))))
	} else {
		vec = make([]float32, 1+r.IntN(16))
		for i := range vec {
			vec[i] = float32(r.NormFloat64() * math.Pow(10, float64(r.IntN(10)-5)))
		}
	}
	if r.IntN(2) == 0 {
		opts = append(opts, WithK(r.IntN(500)-50))
	}
	if r.IntN(2) == 0 {
		opts = append(opts, WithFlatSearchCutoff(r.IntN(1000)))
	}
	for i := range r.IntN(3) {
		opts = append(opts, WithParam("p"+strconv.Itoa(i), strconv.Itoa(r.Int())))
	}
	return New("f"+strconv.Itoa(r.IntN(10)), vec, opts...)
}

func TestRoundTrip_Property(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := range 2000 {
		q, err := randomQuery(r)
		if err != nil {
			t.Fatalf("case %d: New() error: %v", i, err)
		}
		text := q.String()
		parsed, err := Parse(text)
		if err != nil {
			t.Fatalf("case %d: Parse(%q) error: %v", i, text, err)
		}
		if !parsed.Equal(q) {
			t.Fatalf("case %d: round trip mismatch for %q", i, text)
		}
		if parsed.String() != text {
			t.Fatalf("case %d: format not a fixed point: %q vs %q", i, parsed.String(), text)
		}
	}
}

func TestEqual_ParamOrderInsensitive(t *testing.T) {
	a, _ := Parse("v:([1], a:1, b:2)")
	b, _ := Parse("v:([1], b:2, a:1)")
	if !a.Equal(b) {
		t.Error("Equal() = false for reordered params")
	}
	c, _ := Parse("v:([1], a:1, b:3)")
	if a.Equal(c) {
		t.Error("Equal() = true for different param values")
	}
}

func TestTextMarshaling(t *testing.T) {
	type body struct {
		VectorQuery *Query `json:"vector_query,omitempty"`
	}
	q, err := New("vec", []float32{0.5, 1}, WithK(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(body{VectorQuery: &q})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"vector_query":"vec:([0.5, 1], k:3)"}` {
		t.Errorf("json = %s", data)
	}

	var back body
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.VectorQuery == nil || !back.VectorQuery.Equal(q) {
		t.Errorf("unmarshal = %v, want %v", back.VectorQuery, q)
	}

	err = json.Unmarshal([]byte(`{"vector_query":"vec:([])"}`), &back)
	if !errors.Is(err, ErrConflictingTarget) {
		t.Errorf("unmarshal invalid error = %v, want ErrConflictingTarget", err)
	}
}

func TestMarshalText_ZeroValue(t *testing.T) {
	var q Query
	if !q.IsZero() {
		t.Error("IsZero() = false for zero value")
	}
	if _, err := q.MarshalText(); !errors.Is(err, ErrMissingFieldName) {
		t.Errorf("MarshalText() error = %v, want ErrMissingFieldName", err)
	}
}
