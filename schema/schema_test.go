package schema_test

import (
	"testing"

	"github.com/syssam/cppgen"
	"github.com/syssam/cppgen/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopPackage() *schema.Package {
	return &schema.Package{
		Name:    "acme.shop",
		Path:    "acme/shop.yaml",
		Imports: []string{"acme.common"},
		Enums: []*schema.Enum{
			{Name: "Color", Values: []*schema.EnumValue{{Name: "RED"}, {Name: "GREEN", Number: 1}}},
		},
		Messages: []*schema.Message{
			{
				Name: "Order",
				Fields: []*schema.Field{
					{Name: "id", Type: schema.TypeInt64, Quantifier: schema.Required, Number: 1},
					{Name: "line", Type: schema.TypeMessage, TypeName: "Line", Quantifier: schema.Repeated, Number: 2},
					{Name: "money", Type: schema.TypeMessage, TypeName: "Money", Quantifier: schema.Optional, Number: 3},
					{Name: "color", Type: schema.TypeMessage, TypeName: "Color", Quantifier: schema.Optional, Number: 4},
				},
				Messages: []*schema.Message{
					{
						Name:  "Line",
						Enums: []*schema.Enum{{Name: "State", Values: []*schema.EnumValue{{Name: "OPEN"}}}},
						Fields: []*schema.Field{
							{Name: "state", Type: schema.TypeMessage, TypeName: "State", Number: 1},
							{Name: "order", Type: schema.TypeMessage, TypeName: "Order", Number: 2},
						},
					},
				},
			},
			{Name: "Empty"},
		},
		Services: []*schema.Service{
			{
				Name: "Checkout",
				Commands: []*schema.Command{
					{Name: "Place", ID: 1, Request: "Order", Response: "Empty"},
					{Name: "Placed", ID: 2, Kind: schema.CommandEvent, Request: "acme.common.Money"},
				},
			},
		},
	}
}

func commonPackage() *schema.Package {
	return &schema.Package{
		Name:     "acme.common",
		Messages: []*schema.Message{{Name: "Money"}},
	}
}

func TestPackageNumber(t *testing.T) {
	p := shopPackage()
	p.Number()

	t.Run("pre-order ids", func(t *testing.T) {
		msgs := p.AllMessages()
		require.Len(t, msgs, 3)
		assert.Equal(t, "Order", msgs[0].Path())
		assert.Equal(t, "Order.Line", msgs[1].Path())
		assert.Equal(t, "Empty", msgs[2].Path())
		for i, m := range msgs {
			assert.Equal(t, i, m.ID)
			assert.Same(t, m, p.Message(i))
		}
		assert.Nil(t, p.Message(3))
		assert.Nil(t, p.Message(-1))
	})

	t.Run("enums", func(t *testing.T) {
		enums := p.AllEnums()
		require.Len(t, enums, 2)
		assert.Equal(t, "Color", enums[0].Path())
		assert.Equal(t, "Order.Line.State", enums[1].Path())
		assert.Nil(t, enums[0].Parent())
		assert.Equal(t, "Line", enums[1].Parent().Name)
	})

	t.Run("idempotent", func(t *testing.T) {
		p.Number()
		assert.Len(t, p.AllMessages(), 3)
		assert.Len(t, p.AllEnums(), 2)
	})

	t.Run("ancestry", func(t *testing.T) {
		order, line := p.Message(0), p.Message(1)
		assert.Same(t, order, line.Parent())
		assert.True(t, order.Encloses(line))
		assert.True(t, line.Encloses(line))
		assert.False(t, line.Encloses(order))
		assert.Equal(t, "acme.shop.Order.Line", p.QualifiedName(line))
		assert.Equal(t, "acme/shop", p.Dir())
	})
}

func TestSetResolve(t *testing.T) {
	shop, common := shopPackage(), commonPackage()
	set, err := schema.NewSet(shop, common)
	require.NoError(t, err)
	require.NoError(t, set.Resolve())

	assert.Equal(t, "acme.common", set.Packages()[0].Name)
	order := shop.Message(0)

	t.Run("nested scope", func(t *testing.T) {
		f, ok := order.Field("line")
		require.True(t, ok)
		require.NotNil(t, f.Ref)
		assert.Equal(t, schema.Ref{Package: "acme.shop", ID: 1}, *f.Ref)
		assert.Equal(t, schema.TypeMessage, f.Type)
	})

	t.Run("import", func(t *testing.T) {
		f, _ := order.Field("money")
		require.NotNil(t, f.Ref)
		assert.Equal(t, "Money", set.Message(*f.Ref).Name)
		assert.Equal(t, "acme.common", f.Ref.Package)
	})

	t.Run("enum switches type", func(t *testing.T) {
		f, _ := order.Field("color")
		assert.Equal(t, schema.TypeEnum, f.Type)
		assert.Equal(t, "Color", set.Enum(*f.Ref).Name)

		state, _ := shop.Message(1).Field("state")
		assert.Equal(t, schema.TypeEnum, state.Type)
		assert.Equal(t, "Order.Line.State", set.Enum(*state.Ref).Path())
	})

	t.Run("back reference", func(t *testing.T) {
		f, _ := shop.Message(1).Field("order")
		assert.Same(t, order, set.Message(*f.Ref))
	})

	t.Run("commands", func(t *testing.T) {
		place, ok := shop.Services[0].Command("Place")
		require.True(t, ok)
		assert.Same(t, order, set.Message(*place.RequestRef))
		assert.Equal(t, "Empty", set.Message(*place.ResponseRef).Name)

		placed, _ := shop.Services[0].Command("Placed")
		assert.Equal(t, "Money", set.Message(*placed.RequestRef).Name)
		assert.Nil(t, placed.ResponseRef)
	})
}

func TestSetDependencies(t *testing.T) {
	shop, common := shopPackage(), commonPackage()
	shop.Imports = nil
	other := &schema.Package{
		Name: "acme.other",
		Messages: []*schema.Message{{
			Name: "Note",
			Fields: []*schema.Field{
				{Name: "total", Type: schema.TypeMessage, TypeName: "acme.common.Money", Quantifier: schema.Required, Number: 1},
			},
		}},
	}
	set, err := schema.NewSet(shop, common, other)
	require.NoError(t, err)
	// Order.money names Money unqualified and fails without the import.
	require.Error(t, set.Resolve())

	assert.Equal(t, []string{"acme.common"}, set.Dependencies(shop), "qualified command request")
	assert.Equal(t, []string{"acme.common"}, set.Dependencies(other), "qualified field type")
	assert.Empty(t, set.Dependencies(common))

	other.Imports = []string{"acme.shop"}
	assert.Equal(t, []string{"acme.shop", "acme.common"}, set.Dependencies(other))
}

func TestSetResolveErrors(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		p := &schema.Package{
			Name: "x",
			Messages: []*schema.Message{{
				Name: "A",
				Fields: []*schema.Field{{
					Name: "b", Type: schema.TypeMessage, TypeName: "Missing",
					Pos: schema.Position{File: "x.yaml", Line: 7},
				}},
			}},
		}
		set, err := schema.NewSet(p)
		require.NoError(t, err)
		err = set.Resolve()
		require.Error(t, err)
		assert.True(t, cppgen.IsPlanningError(err))
		assert.Contains(t, err.Error(), "x.yaml:7")
		assert.Contains(t, err.Error(), `unknown type "Missing"`)
	})

	t.Run("unknown import", func(t *testing.T) {
		set, err := schema.NewSet(&schema.Package{Name: "x", Imports: []string{"y"}})
		require.NoError(t, err)
		assert.ErrorContains(t, set.Resolve(), `unknown package "y"`)
	})

	t.Run("duplicate package", func(t *testing.T) {
		_, err := schema.NewSet(&schema.Package{Name: "x"}, &schema.Package{Name: "x"})
		assert.Error(t, err)
	})
}

func TestTypes(t *testing.T) {
	tests := []struct {
		typ    schema.Type
		scalar bool
		buffer bool
	}{
		{schema.TypeInt32, true, false},
		{schema.TypeBool, true, false},
		{schema.TypeDouble, true, false},
		{schema.TypeEnum, true, false},
		{schema.TypeString, false, true},
		{schema.TypeBytes, false, true},
		{schema.TypeMessage, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.True(t, tt.typ.Valid())
			assert.Equal(t, tt.scalar, tt.typ.Scalar())
			assert.Equal(t, tt.buffer, tt.typ.Buffer())
		})
	}
	assert.False(t, schema.TypeBool.Numeric())
	assert.False(t, schema.TypeInvalid.Valid())

	typ, ok := schema.ParseType("uint64")
	assert.True(t, ok)
	assert.Equal(t, schema.TypeUint64, typ)
	_, ok = schema.ParseType("Order")
	assert.False(t, ok)

	q, err := schema.ParseQuantifier("")
	require.NoError(t, err)
	assert.Equal(t, schema.Optional, q)
	_, err = schema.ParseQuantifier("many")
	assert.Error(t, err)
}

func TestOptionSet(t *testing.T) {
	var s schema.OptionSet
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Bool(schema.OptScoped, true))

	s.Set(schema.OptAccessors, "get, set,,has")
	s.Set(schema.OptDeprecated, "true")
	s.SetExtension(schema.Extension{Name: "zeta", ID: 50002, Value: "z"})
	s.SetExtension(schema.Extension{Name: "alpha", ID: 50001, Value: "a"})

	list, ok := s.List(schema.OptAccessors)
	require.True(t, ok)
	assert.Equal(t, []string{"get", "set", "has"}, list)
	assert.True(t, s.Bool(schema.OptDeprecated, false))
	assert.Equal(t, []string{"alpha", "zeta"}, []string{s.Extensions()[0].Name, s.Extensions()[1].Name})
	assert.Equal(t, 4, s.Len())

	spec, ok := schema.LookupOption(schema.KindService, "class_name")
	require.True(t, ok)
	assert.True(t, spec.Required)
	spec, _ = schema.LookupOption(schema.KindField, "deprecated")
	assert.Error(t, spec.CheckValue("maybe"))
	assert.NoError(t, spec.CheckValue("false"))

	kind, ok := schema.ParseKind("enum_value")
	assert.True(t, ok)
	assert.Equal(t, schema.KindEnumValue, kind)
	assert.True(t, schema.Option{ID: schema.CustomThreshold}.Custom())
}
