package common

// Errno values returned negated in a0.
type Errno int32

const (
	ENOENT  Errno = 2
	E2BIG   Errno = 7
	ENOEXEC Errno = 8
	EBADF   Errno = 9
	ECHILD  Errno = 10
	EAGAIN  Errno = 11
	ENOMEM  Errno = 12
	EFAULT  Errno = 14
	EINVAL  Errno = 22
	ENOSYS  Errno = 38
)

var errnoNames = map[Errno]string{
	ENOENT:  "ENOENT",
	E2BIG:   "E2BIG",
	ENOEXEC: "ENOEXEC",
	EBADF:   "EBADF",
	ECHILD:  "ECHILD",
	EAGAIN:  "EAGAIN",
	ENOMEM:  "ENOMEM",
	EFAULT:  "EFAULT",
	EINVAL:  "EINVAL",
	ENOSYS:  "ENOSYS",
}

// Ret is the register value a handler returns for e.
func (e Errno) Ret() uint64 {
	return uint64(int64(-e))
}

func (e Errno) Error() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return "errno"
}

// ErrnoName names a negative return value, or returns "".
func ErrnoName(ret uint32) string {
	if name, ok := errnoNames[Errno(-int32(ret))]; ok && int32(ret) < 0 {
		return name
	}
	return ""
}
