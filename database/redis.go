//Redis连接、缓存操作、批量任务状态
package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"review-hub/monitoring"

	"github.com/go-redis/redis/v8"
)

var ctx = context.Background()

//定义连接池类型
type RedisPool struct {
	pool *sync.Pool
}

func InitRedisPool() *RedisPool {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	password := os.Getenv("REDIS_PASSWORD")

	return &RedisPool{
		pool: &sync.Pool{
			New: func() interface{} {
				return redis.NewClient(&redis.Options{
					Addr:         addr,
					Password:     password,
					DB:           0,
					PoolSize:     100,              //连接池大小
					MinIdleConns: 5,                //最小空闲连接数
					DialTimeout:  10 * time.Second,
					ReadTimeout:  30 * time.Second,
					WriteTimeout: 30 * time.Second,
				})
			},
		},
	}
}

// InitRedis 初始化连接池并做一次连通性检查
func InitRedis() (*RedisPool, error) {
	rp := InitRedisPool()
	rdb := rp.GetClient()
	defer rp.PutClient(rdb)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis连接测试失败: %v", err)
	}
	return rp, nil
}

//从 Redis 池取一个客户端
func (rp *RedisPool) GetClient() *redis.Client {
	return rp.pool.Get().(*redis.Client)
}

// 将 Redis 客户端放回连接池
func (rp *RedisPool) PutClient(rdb *redis.Client) {
	rp.pool.Put(rdb)
}

// 从 Redis 获取数据
func GetFromCache(rp *RedisPool, key string) (string, error) {
	var value string
	err := monitoring.RecordRedisTime("GetFromCache", func() error {
		rdb := rp.GetClient()   // 从连接池获取一个 Redis 客户端
		defer rp.PutClient(rdb) // 使用完后归还到连接池
		var err error
		value, err = rdb.Get(ctx, key).Result()
		return err
	})
	return value, err
}

// IsCacheMiss 区分未命中和真实错误
func IsCacheMiss(err error) bool {
	return err == redis.Nil
}

// 将数据写入 Redis
func SetToCache(rp *RedisPool, key string, value string, expiration time.Duration) error {
	return monitoring.RecordRedisTime("SetToCache", func() error {
		rdb := rp.GetClient()
		defer rp.PutClient(rdb)
		return rdb.Set(ctx, key, value, expiration).Err()
	})
}

// 删除 Redis 中的键
func DeleteFromCache(rp *RedisPool, key string) error {
	return monitoring.RecordRedisTime("DeleteFromCache", func() error {
		rdb := rp.GetClient()
		defer rp.PutClient(rdb)
		return rdb.Del(ctx, key).Err()
	})
}
