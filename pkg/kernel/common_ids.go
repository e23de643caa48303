package kernel

import "github.com/google/uuid"

type OTPID string

func NewOTPID() OTPID          { return OTPID(uuid.NewString()) }
func (o OTPID) String() string { return string(o) }
func (o OTPID) IsEmpty() bool  { return string(o) == "" }

type AttemptID string

func NewAttemptID() AttemptID      { return AttemptID(uuid.NewString()) }
func (a AttemptID) String() string { return string(a) }
func (a AttemptID) IsEmpty() bool  { return string(a) == "" }
