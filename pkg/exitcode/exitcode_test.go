package exitcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulatorDefaultsToSuccess(t *testing.T) {
	var acc Accumulator
	assert.Equal(t, Success, acc.Code())
}

func TestAccumulatorIgnoresZero(t *testing.T) {
	var acc Accumulator
	acc.Record(0)
	acc.Record(1603)
	acc.Record(0)
	assert.Equal(t, 1603, acc.Code(), "a later success must not clear an earlier failure")
}

func TestAccumulatorRecordsLastFailure(t *testing.T) {
	var acc Accumulator
	acc.Record(1603)
	acc.Record(1618)
	assert.Equal(t, 1618, acc.Code())
}

func TestRebootSentinelSticks(t *testing.T) {
	var acc Accumulator
	acc.Record(RebootRequired)
	acc.Record(1603)
	acc.Record(1618)
	assert.Equal(t, RebootRequired, acc.Code(), "reboot-required must survive later step failures")
}

func TestRebootSentinelOverridesEarlierFailure(t *testing.T) {
	var acc Accumulator
	acc.Record(1603)
	acc.Record(RebootRequired)
	assert.Equal(t, RebootRequired, acc.Code())
}

func TestForceOverridesEverything(t *testing.T) {
	var acc Accumulator
	acc.Record(RebootRequired)
	acc.Force(DeployFailure)
	assert.Equal(t, DeployFailure, acc.Code())
}

func TestAccumulatorCountsStepsAndFailures(t *testing.T) {
	var acc Accumulator
	acc.Record(0)
	acc.Record(1603)
	acc.Record(RebootRequired)
	acc.Record(0)

	assert.Equal(t, 4, acc.Steps())
	assert.Equal(t, 1, acc.Failures(), "a pending reboot is not a failure")
}

func TestIsSuccess(t *testing.T) {
	assert.True(t, IsSuccess(Success))
	assert.True(t, IsSuccess(RebootRequired))
	assert.False(t, IsSuccess(1603))
	assert.False(t, IsSuccess(DeployFailure))
	assert.False(t, IsSuccess(MissingPrereqs))
}
