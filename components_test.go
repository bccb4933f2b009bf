package ics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const componentFixture = "BEGIN:VEVENT\r\n" +
	"UID:fixture\r\n" +
	"DTSTART:20120101T100000Z\r\n" +
	"SUMMARY:first\r\n" +
	"SUMMARY:second\r\n" +
	"BEGIN:VALARM\r\n" +
	"ACTION:DISPLAY\r\n" +
	"TRIGGER:-PT15M\r\n" +
	"END:VALARM\r\n" +
	"BEGIN:VALARM\r\n" +
	"ACTION:AUDIO\r\n" +
	"TRIGGER:-PT5M\r\n" +
	"END:VALARM\r\n" +
	"END:VEVENT"

func fixtureComponent(t *testing.T) *Component {
	t.Helper()
	c, err := ComponentFromString(componentFixture)
	require.NoError(t, err)
	return c
}

func TestComponentLookups(t *testing.T) {
	c := fixtureComponent(t)
	assert.Equal(t, "vevent", c.Name())
	assert.True(t, c.HasProperty("summary"))
	assert.True(t, c.HasProperty("SUMMARY"))
	assert.False(t, c.HasProperty("location"))

	assert.Equal(t, "first", c.GetFirstProperty("summary").FirstString())
	assert.Len(t, c.GetAllProperties("summary"), 2)
	assert.Len(t, c.GetAllProperties(""), 4)
	assert.Equal(t, "uid", c.GetFirstProperty("").Name())
	assert.Nil(t, c.GetFirstProperty("location"))

	_, err := c.GetFirstPropertyValue("location")
	assert.ErrorIs(t, err, ErrorPropertyNotFound)

	alarms := c.GetAllSubcomponents("valarm")
	require.Len(t, alarms, 2)
	assert.Same(t, alarms[0], c.GetFirstSubcomponent("VALARM"))
	assert.Same(t, c, alarms[1].Parent())
	assert.Nil(t, c.GetFirstSubcomponent("vtodo"))
}

func TestComponentWrappersAreStable(t *testing.T) {
	c := fixtureComponent(t)
	first := c.GetFirstProperty("summary")
	assert.Same(t, first, c.GetFirstProperty("summary"))
	assert.Same(t, c, first.Parent())

	v1, err := c.GetFirstPropertyValue("dtstart")
	require.NoError(t, err)
	v2, err := c.GetFirstPropertyValue("dtstart")
	require.NoError(t, err)
	assert.Same(t, v1, v2)
}

func TestComponentMutationKeepsCachesAligned(t *testing.T) {
	c := fixtureComponent(t)
	summaries := c.GetAllProperties("summary")
	alarms := c.GetAllSubcomponents("valarm")

	require.True(t, c.RemoveProperty(summaries[0]))
	assert.Nil(t, summaries[0].Parent())
	assert.Same(t, summaries[1], c.GetFirstProperty("summary"))
	assert.Len(t, c.JCal().Properties, 3)

	loc := c.AddProperty(NewProperty("LOCATION"))
	require.NoError(t, loc.SetValue("Room 1"))
	assert.Same(t, loc, c.GetFirstProperty("location"))
	assert.Equal(t, "location", c.JCal().Properties[3].Name)

	require.True(t, c.RemoveSubcomponent(alarms[0]))
	assert.Nil(t, alarms[0].Parent())
	assert.Same(t, alarms[1], c.GetFirstSubcomponent("valarm"))

	other := NewComponent("vevent")
	other.AddSubcomponent(alarms[1])
	assert.Empty(t, c.GetAllSubcomponents("valarm"))
	assert.Same(t, other, alarms[1].Parent())

	// moving a property detaches it from its previous owner
	other.AddProperty(loc)
	assert.False(t, c.HasProperty("location"))
	assert.Same(t, other, loc.Parent())
}

func TestComponentRemoveByName(t *testing.T) {
	c := fixtureComponent(t)
	assert.True(t, c.RemovePropertyByName("summary"))
	assert.Equal(t, "second", c.GetFirstProperty("summary").FirstString())
	assert.True(t, c.RemoveAllProperties("summary"))
	assert.False(t, c.RemoveAllProperties("summary"))
	assert.False(t, c.RemovePropertyByName("summary"))

	assert.True(t, c.RemoveSubcomponentByName("valarm"))
	assert.Len(t, c.GetAllSubcomponents("valarm"), 1)
	assert.True(t, c.RemoveAllSubcomponents(""))
	assert.Empty(t, c.JCal().Components)
	assert.False(t, c.RemoveAllSubcomponents("valarm"))
}

func TestComponentAddPropertyWithValue(t *testing.T) {
	c := NewComponent("VEVENT")
	assert.Equal(t, "vevent", c.Name())

	p, err := c.AddPropertyWithValue("attendee", "mailto:a@example.com", WithCN("A"), WithRSVP(true), ParticipationStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, "ATTENDEE;CN=A;RSVP=TRUE;PARTSTAT=ACCEPTED:mailto:a@example.com", p.ToICALString())

	_, err = c.UpdatePropertyWithValue("summary", "one")
	require.NoError(t, err)
	_, err = c.UpdatePropertyWithValue("summary", "two")
	require.NoError(t, err)
	assert.Len(t, c.GetAllProperties("summary"), 1)
	assert.Equal(t, "two", c.GetFirstProperty("summary").FirstString())

	_, err = c.AddPropertyWithValue("dtstart", "not a date")
	assert.ErrorIs(t, err, ErrInvalidTime)
	assert.False(t, c.HasProperty("dtstart"))
}

func TestComponentJSON(t *testing.T) {
	c := NewComponent("vevent")
	_, err := c.AddPropertyWithValue("summary", "hi")
	require.NoError(t, err)
	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `["vevent",[["summary",{},"text","hi"]],[]]`, string(b))
}

func TestPropertyDecoratedValues(t *testing.T) {
	p, err := PropertyFromString("DTSTART:20120101T100000Z")
	require.NoError(t, err)
	assert.True(t, p.IsDecorated())
	assert.Equal(t, ValueDataTypeDateTime, p.Type())

	v, err := p.FirstValue()
	require.NoError(t, err)
	tm := v.(*Time)
	assert.Equal(t, "2012-01-01T10:00:00Z", tm.String())

	require.NoError(t, p.SetValue(NewDate(2012, 2, 3)))
	assert.Equal(t, ValueDataTypeDate, p.Type())
	assert.Equal(t, []any{"2012-02-03"}, p.JCal().Values)
	assert.Equal(t, "DTSTART;VALUE=DATE:20120203", p.ToICALString())

	require.NoError(t, p.SetValue("2013-01-01"))
	v, err = p.FirstValue()
	require.NoError(t, err)
	assert.Equal(t, "2013-01-01", v.(*Time).String())
}

func TestPropertyMultiValue(t *testing.T) {
	p := NewProperty("categories")
	assert.True(t, p.IsMultiValue())
	require.NoError(t, p.SetValues([]any{"a", "b"}))
	assert.Equal(t, "CATEGORIES:a,b", p.ToICALString())

	s := NewProperty("summary")
	assert.ErrorIs(t, s.SetValues([]any{"a", "b"}), ErrUnexpectedValueKind)

	ex := NewProperty("exdate")
	require.NoError(t, ex.SetValues([]any{
		NewTime(2012, 1, 1, 10, 0, 0, UTCTimezone()),
		NewTime(2012, 1, 2, 10, 0, 0, UTCTimezone()),
	}))
	assert.Equal(t, "EXDATE:20120101T100000Z,20120102T100000Z", ex.ToICALString())
	values, err := ex.Values()
	require.NoError(t, err)
	assert.Len(t, values, 2)
}

func TestPropertySetValueRejected(t *testing.T) {
	p, err := PropertyFromString("DURATION:PT1H")
	require.NoError(t, err)
	assert.Error(t, p.SetValue("hello"))
	assert.Equal(t, "DURATION:PT1H", p.ToICALString())
	v, err := p.FirstValue()
	require.NoError(t, err)
	assert.Equal(t, 3600, v.(*Duration).ToSeconds())

	dt, err := PropertyFromString("DTSTART:20120101T100000Z")
	require.NoError(t, err)
	dt.ResetType(ValueDataTypeDuration)
	require.NoError(t, dt.SetValue("PT15M"))
	assert.ErrorIs(t, dt.SetValue("hello"), ErrInvalidDuration)
	assert.Equal(t, "DTSTART;VALUE=DURATION:PT15M", dt.ToICALString())

	ex, err := PropertyFromString("EXDATE:20120101T100000Z,20120102T100000Z")
	require.NoError(t, err)
	assert.Error(t, ex.SetValues([]any{"2012-01-03T10:00:00Z", "garbage"}))
	assert.Equal(t, "EXDATE:20120101T100000Z,20120102T100000Z", ex.ToICALString())
	values, err := ex.Values()
	require.NoError(t, err)
	assert.Len(t, values, 2)
}

func TestPropertyParameters(t *testing.T) {
	p, err := PropertyFromString(`ATTENDEE;CN="Doe, John";MEMBER="mailto:a@x","mailto:b@x":mailto:j@x`)
	require.NoError(t, err)
	cn, ok := p.GetParameter("cn")
	assert.True(t, ok)
	assert.Equal(t, "Doe, John", cn)
	assert.Equal(t, []string{"mailto:a@x", "mailto:b@x"}, p.GetParameterValues("MEMBER"))

	p.SetParameter("role", "CHAIR")
	v, _ := p.GetParameter("ROLE")
	assert.Equal(t, "CHAIR", v)
	assert.True(t, p.RemoveParameter("cn"))
	assert.False(t, p.RemoveParameter("cn"))
	_, ok = p.GetParameter("cn")
	assert.False(t, ok)
}

func TestPropertyResetType(t *testing.T) {
	p, err := PropertyFromString("DTSTART:20120101T100000Z")
	require.NoError(t, err)
	_, err = p.FirstValue()
	require.NoError(t, err)

	p.ResetType(ValueDataTypeText)
	assert.False(t, p.IsDecorated())
	assert.Empty(t, p.JCal().Values)
	v, err := p.FirstValue()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, ValueDataTypeDateTime, p.GetDefaultType())
}
