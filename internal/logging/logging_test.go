package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLogger_SharesEntriesAcrossDerivedLoggers(t *testing.T) {
	log := NewMockLogger()
	child := log.WithField(FieldAccountID, "checking").WithError(errors.New("boom"))

	log.Info("Starting")
	child.Error("Check failed", F(FieldStage, "load"))

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.True(t, log.HasEntry("ERROR", "Check failed"))
	assert.False(t, log.HasEntry("WARN", "Check failed"))

	failed := entries[1]
	assert.EqualError(t, failed.Error, "boom")
	assert.Equal(t, []Field{F(FieldAccountID, "checking"), F(FieldStage, "load")}, failed.Fields)
}

func TestLogrusAdapter_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	log := NewLogrusAdapterFromLogger(base)
	log.WithFields(F(FieldPlanID, "p1")).Info("Plan created", F(FieldRound, 2))

	out := buf.String()
	assert.Contains(t, out, `"msg":"Plan created"`)
	assert.Contains(t, out, `"plan_id":"p1"`)
	assert.Contains(t, out, `"round":2`)
}

func TestLogrusAdapter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetLevel(logrus.WarnLevel)

	log := NewLogrusAdapterFromLogger(base)
	log.Debug("quiet")
	log.Info("quiet")
	assert.Empty(t, buf.String())

	log.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}
