package events

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uperrors "analytics-uploader/internal/errors"
)

const sampleCSV = `time,customer,namespace,event,additional
2024-01-02T00:00:00,acme,dev,sync,{}
2024-01-01T00:00:00,acme,dev,start,
2024-01-03T00:00:00,user-study-42,demo,start,ignored
2024-01-01T12:00:00,globex,prod,"login, web","{""k"":1}"
`

func TestRead_ParsesRowsInFileOrder(t *testing.T) {
	got, err := Collect(Read(strings.NewReader(sampleCSV), ReservedCustomerPrefix))
	require.NoError(t, err)

	want := []AnalyticsEvent{
		{Time: "2024-01-02T00:00:00", Customer: "acme", Namespace: "dev", Event: "sync", Additional: "{}"},
		{Time: "2024-01-01T00:00:00", Customer: "acme", Namespace: "dev", Event: "start", Additional: ""},
		{Time: "2024-01-01T12:00:00", Customer: "globex", Namespace: "prod", Event: "login, web", Additional: `{"k":1}`},
	}
	assert.Equal(t, want, got)
}

func TestRead_DropsOnlyReservedCustomers(t *testing.T) {
	input := `time,customer,namespace,event,additional
t1,user-study,ns,e,
t2,user-study-42,ns,e,
t3,my-user-study,ns,e,
t4,user-stud,ns,e,
t5,User-Study-1,ns,e,
`
	got, err := Collect(Read(strings.NewReader(input), ReservedCustomerPrefix))
	require.NoError(t, err)

	var customers []string
	for _, ev := range got {
		customers = append(customers, ev.Customer)
		assert.False(t, strings.HasPrefix(ev.Customer, ReservedCustomerPrefix))
	}
	assert.Equal(t, []string{"my-user-study", "user-stud", "User-Study-1"}, customers)
}

func TestRead_EmptyPrefixKeepsEverything(t *testing.T) {
	got, err := Collect(Read(strings.NewReader(sampleCSV), ""))
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestRead_HeaderOrderIrrelevantAndExtraColumnsIgnored(t *testing.T) {
	input := "\ufeffadditional,event,source,namespace,customer,time\n" +
		"payload,deploy,s3,ns1,acme,2024-05-01\n"

	got, err := Collect(Read(strings.NewReader(input), ReservedCustomerPrefix))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, AnalyticsEvent{
		Time:       "2024-05-01",
		Customer:   "acme",
		Namespace:  "ns1",
		Event:      "deploy",
		Additional: "payload",
	}, got[0])
}

func TestRead_RepeatedHeaderUsesLastColumn(t *testing.T) {
	input := "time,customer,namespace,event,additional,time\n" +
		"2024-01-01T00:00:00,acme,dev,start,,2024-02-01T00:00:00\n"

	got, err := Collect(Read(strings.NewReader(input), ReservedCustomerPrefix))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-02-01T00:00:00", got[0].Time)
}

func TestRead_EmptyInput(t *testing.T) {
	got, err := Collect(Read(strings.NewReader(""), ReservedCustomerPrefix))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRead_MissingHeaderField(t *testing.T) {
	input := "time,customer,namespace,event\nt1,acme,ns,e\n"

	_, err := Collect(Read(strings.NewReader(input), ReservedCustomerPrefix))
	require.Error(t, err)
	assert.True(t, uperrors.IsMalformedRow(err))
	assert.Equal(t, 1, uperrors.RowOf(err))
	assert.Contains(t, err.Error(), "additional")
}

func TestRead_ShortRecord(t *testing.T) {
	input := "time,customer,namespace,event,additional\n" +
		"t1,acme,ns,e,\n" +
		"t2,acme\n"

	var seen []AnalyticsEvent
	var gotErr error
	for ev, err := range Read(strings.NewReader(input), ReservedCustomerPrefix) {
		if err != nil {
			gotErr = err
			break
		}
		seen = append(seen, ev)
	}

	require.Error(t, gotErr)
	assert.True(t, uperrors.IsMalformedRow(gotErr))
	assert.Equal(t, 3, uperrors.RowOf(gotErr))
	assert.Len(t, seen, 1)
}

func TestRead_StopsWhenConsumerStops(t *testing.T) {
	count := 0
	for range Read(strings.NewReader(sampleCSV), ReservedCustomerPrefix) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestReadFile_IsRestartable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined-analytics.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	seq := ReadFile(path, ReservedCustomerPrefix)

	first, err := Collect(seq)
	require.NoError(t, err)
	second, err := Collect(seq)
	require.NoError(t, err)

	assert.Len(t, first, 3)
	assert.Equal(t, first, second)
}

func TestReadFile_MissingFile(t *testing.T) {
	_, err := Collect(ReadFile(filepath.Join(t.TempDir(), "nope.csv"), ReservedCustomerPrefix))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, uperrors.KindConfig, uperrors.KindOf(err))
}
