package brain

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/robotalks/vexlink/pkg/l0/comm"
)

// MotorField is a telemetry value of a motor.
type MotorField struct {
	Name    string
	Command CommandID
}

// MotorFields lists telemetry fields in display order.
var MotorFields = []MotorField{
	{"Actual Velocity", 0xA0A0},
	{"Actual Voltage", 0xA0A1},
	{"Current Draw", 0xA0A2},
	{"Encoder Position", 0xA0A3},
	{"Brakemode", 0xA0A4},
	{"Gearset", 0xA0A5},
	{"Port", 0xA0A6},
	{"PID Constants", 0xA0A7},
	{"Slew Rate", 0xA0A8},
	{"Power", 0xA0A9},
	{"Temperature", 0xA0AA},
	{"Torque", 0xA0AB},
	{"Direction", 0xA0AC},
	{"Efficiency", 0xA0AD},
	{"Is Stopped", 0xA0AE},
	{"Is Reversed", 0xA0AF},
	{"Is Registered", 0xA1A0},
}

// MotorNames maps motor numbers to names.
var MotorNames = map[int]string{
	0: "Front Right",
	1: "Front Left",
	2: "Back Right",
	3: "Back Left",
	4: "Main Intake",
	5: "Hoarding Intake",
	6: "Lift",
}

// ErrUnknownMotor indicates the motor number is not in MotorNames.
var ErrUnknownMotor = errors.New("unknown motor")

// MotorNumbers returns known motor numbers in order.
func MotorNumbers() []int {
	nums := make([]int, 0, len(MotorNames))
	for num := range MotorNames {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	return nums
}

// MotorData maps field names to values, nil for fields not answered.
type MotorData map[string]*string

// ReadMotor fetches all telemetry fields of a motor concurrently.
func ReadMotor(r *comm.Registry, motor int, maxWait time.Duration) (MotorData, error) {
	if _, ok := MotorNames[motor]; !ok {
		return nil, ErrUnknownMotor
	}
	msg := []byte(strconv.Itoa(motor))
	requests := make([][]byte, len(MotorFields))
	for n, field := range MotorFields {
		payload, err := Payload(field.Command, msg)
		if err != nil {
			return nil, err
		}
		requests[n] = payload
	}
	data := make(MotorData, len(MotorFields))
	for n, result := range r.MultiRequest(requests, maxWait) {
		switch {
		case result.Err == nil:
			val := comm.DecodeText(result.Data)
			data[MotorFields[n].Name] = &val
		case result.TimedOut():
			data[MotorFields[n].Name] = nil
		default:
			return nil, result.Err
		}
	}
	return data, nil
}
