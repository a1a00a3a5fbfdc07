package marketdata

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"booktrader/internal/errs"
	"booktrader/internal/market"
)

const timeZoneDirective = "timeZone="

// FileSource 读取 CSV 格式的盘口历史文件，多个文件并发解析后合并。
//
// 每行格式为 date,time,balance,price,volume，其中 date 为 MMddyy，time 为 HHmmss 或 HHmmss.SSS。
// 以 # 开头的行为注释，"# timeZone=America/New_York" 可覆盖默认时区。
type FileSource struct {
	paths    []string
	location *time.Location
	window   Window
	logger   *zap.Logger
}

// NewFileSource 创建文件数据源，location 为空时使用 UTC。
func NewFileSource(paths []string, location *time.Location, window Window, logger *zap.Logger) (*FileSource, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("marketdata: %w: 未指定历史文件", errs.ErrConfiguration)
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{
		paths:    append([]string(nil), paths...),
		location: location,
		window:   window,
		logger:   logger,
	}, nil
}

func (s *FileSource) Load(ctx context.Context) ([]market.Snapshot, error) {
	parts := make([][]market.Snapshot, len(s.paths))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, path := range s.paths {
		i, path := i, path
		group.Go(func() error {
			snaps, err := s.readFile(groupCtx, path)
			if err != nil {
				return err
			}
			parts[i] = snaps
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("marketdata: %w: %w", errs.ErrDataLoad, err)
	}

	snapshots, err := merge(parts, s.window)
	if err != nil {
		return nil, fmt.Errorf("marketdata: %w: %w", errs.ErrDataLoad, err)
	}
	if err := market.ValidateSequence(snapshots); err != nil {
		return nil, fmt.Errorf("marketdata: %w: %w", errs.ErrDataLoad, err)
	}
	s.logger.Info("历史数据已加载",
		zap.Int("files", len(s.paths)),
		zap.Int("snapshots", len(snapshots)),
		zap.Time("from", snapshots[0].Time),
		zap.Time("to", snapshots[len(snapshots)-1].Time),
	)
	return snapshots, nil
}

func (s *FileSource) readFile(ctx context.Context, path string) ([]market.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	defer f.Close()

	snaps, err := ParseCSV(ctx, f, s.location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.logger.Debug("解析历史文件", zap.String("path", path), zap.Int("snapshots", len(snaps)))
	return snaps, nil
}

// ParseCSV 从 r 中解析快照，不要求输入有序。
func ParseCSV(ctx context.Context, r io.Reader, location *time.Location) ([]market.Snapshot, error) {
	if location == nil {
		location = time.UTC
	}
	// 注释行会被 csv.Reader 跳过，时区指令需预先读取。
	body, loc, err := scanDirectives(r, location)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(body)
	reader.Comment = '#'
	reader.FieldsPerRecord = 5
	reader.TrimLeadingSpace = true

	var out []market.Snapshot
	for {
		if len(out)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取 CSV 失败: %w", err)
		}
		line, _ := reader.FieldPos(0)
		snap, err := parseRecord(record, loc)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// scanDirectives 读取文件头部的注释行以获取时区，返回可继续读取全文的 reader。
func scanDirectives(r io.Reader, location *time.Location) (io.Reader, *time.Location, error) {
	br := bufio.NewReader(r)
	var header strings.Builder
	for {
		peek, err := br.Peek(1)
		if err != nil || peek[0] != '#' {
			break
		}
		line, err := br.ReadString('\n')
		header.WriteString(line)
		directive := strings.TrimSpace(strings.TrimPrefix(line, "#"))
		if name, ok := strings.CutPrefix(directive, timeZoneDirective); ok {
			loc, loadErr := time.LoadLocation(strings.TrimSpace(name))
			if loadErr != nil {
				return nil, nil, fmt.Errorf("%w: 时区 %q 无效: %w", errs.ErrConfiguration, name, loadErr)
			}
			location = loc
		}
		if err != nil {
			break
		}
	}
	return io.MultiReader(strings.NewReader(header.String()), br), location, nil
}

func parseRecord(record []string, location *time.Location) (market.Snapshot, error) {
	ts, err := parseTimestamp(record[0], record[1], location)
	if err != nil {
		return market.Snapshot{}, err
	}
	balance, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("balance %q 无效: %w", record[2], err)
	}
	if balance < -100 || balance > 100 {
		return market.Snapshot{}, fmt.Errorf("balance %v 超出 [-100,100]", balance)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("price %q 无效: %w", record[3], err)
	}
	if price <= 0 {
		return market.Snapshot{}, fmt.Errorf("price %v 必须为正", price)
	}
	volume, err := strconv.ParseInt(strings.TrimSpace(record[4]), 10, 64)
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("volume %q 无效: %w", record[4], err)
	}
	return market.Snapshot{Time: ts, Price: price, Balance: balance, Volume: volume}, nil
}

func parseTimestamp(date, clock string, location *time.Location) (time.Time, error) {
	layout := "010206 150405"
	if strings.Contains(clock, ".") {
		layout = "010206 150405.000"
	}
	ts, err := time.ParseInLocation(layout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), location)
	if err != nil {
		return time.Time{}, fmt.Errorf("时间 %s %s 无效: %w", date, clock, err)
	}
	return ts, nil
}

// WriteCSV 以 ParseCSV 可读取的格式写出快照。
func WriteCSV(w io.Writer, snapshots []market.Snapshot, location *time.Location) error {
	if location == nil {
		location = time.UTC
	}
	writer := csv.NewWriter(w)
	if _, err := fmt.Fprintf(w, "# %s%s\n", timeZoneDirective, location.String()); err != nil {
		return err
	}
	for _, s := range snapshots {
		local := s.Time.In(location)
		record := []string{
			local.Format("010206"),
			local.Format("150405.000"),
			strconv.FormatFloat(s.Balance, 'f', -1, 64),
			strconv.FormatFloat(s.Price, 'f', -1, 64),
			strconv.FormatInt(s.Volume, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
